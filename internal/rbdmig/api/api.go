// Package api 提供迁移记录的只读 HTTP 接口
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/rbdmig/pkg/ginx"
)

type API struct {
	engine *gin.Engine
	server *http.Server

	journal *Journal
}

// New 创建 API，addr 为监听地址
func New(journalService JournalServiceInterface, addr string) (*API, error) {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	api := &API{
		engine:  engine,
		journal: NewJournal(journalService),
	}
	engine.GET("/healthz", ginx.Adapt2(func(*gin.Context) string { return "ok" }))
	api.journal.RegisterRoutes(engine.Group("/api"))

	api.server = &http.Server{
		Addr:    addr,
		Handler: engine,
	}
	return api, nil
}

// Run 实现 grace.Grace 接口，ctx 取消后关闭服务
func (a *API) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return a.server.Shutdown(context.Background())
	}
}

// Shutdown 实现 grace.Grace 接口
func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Name 实现 grace.Grace 接口
func (a *API) Name() string {
	return "Journal API"
}

// Handler 返回 http.Handler
func (a *API) Handler() http.Handler {
	return a.engine
}
