package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/jimyag/rbdmig/pkg/ginx"
	"github.com/rs/zerolog"
)

// JournalServiceInterface 迁移记录服务接口
type JournalServiceInterface interface {
	ListRuns(ctx context.Context, req *entity.ListRunsRequest) (*entity.ListRunsResponse, error)
	GetRun(ctx context.Context, req *entity.GetRunRequest) (*entity.GetRunResponse, error)
	ListCheckpoints(ctx context.Context, req *entity.GetRunRequest) (*entity.ListCheckpointsResponse, error)
}

type Journal struct {
	journalService JournalServiceInterface
}

func NewJournal(journalService JournalServiceInterface) *Journal {
	return &Journal{
		journalService: journalService,
	}
}

func (j *Journal) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/runs", ginx.Adapt5(j.ListRuns))
	router.GET("/runs/:id", ginx.Adapt5(j.GetRun))
	router.GET("/runs/:id/checkpoints", ginx.Adapt5(j.ListCheckpoints))
}

func (j *Journal) ListRuns(ctx *gin.Context, req *entity.ListRunsRequest) (*entity.ListRunsResponse, error) {
	resp, err := j.journalService.ListRuns(ctx.Request.Context(), req)
	if err != nil {
		zerolog.Ctx(ctx.Request.Context()).Error().Err(err).Msg("Failed to list runs")
		return nil, err
	}
	return resp, nil
}

func (j *Journal) GetRun(ctx *gin.Context, req *entity.GetRunRequest) (*entity.GetRunResponse, error) {
	resp, err := j.journalService.GetRun(ctx.Request.Context(), req)
	if err != nil {
		zerolog.Ctx(ctx.Request.Context()).Warn().Err(err).Str("run_id", req.ID).Msg("Failed to get run")
		return nil, err
	}
	return resp, nil
}

func (j *Journal) ListCheckpoints(ctx *gin.Context, req *entity.GetRunRequest) (*entity.ListCheckpointsResponse, error) {
	resp, err := j.journalService.ListCheckpoints(ctx.Request.Context(), req)
	if err != nil {
		zerolog.Ctx(ctx.Request.Context()).Warn().Err(err).Str("run_id", req.ID).Msg("Failed to list checkpoints")
		return nil, err
	}
	return resp, nil
}
