package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/jimyag/rbdmig/internal/rbdmig/repository"
	"github.com/jimyag/rbdmig/pkg/rbd"
	"github.com/jimyag/rbdmig/pkg/rbd/rbdtest"
	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()

	repo, err := repository.New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return NewJournal(repo)
}

func TestJournal_RunLifecycle(t *testing.T) {
	t.Parallel()

	journal := setupTestJournal(t)
	ctx := WithRunID(context.Background(), "run-1")

	require.NoError(t, journal.Begin(ctx, "run-1", 2))

	journal.Checkpoint(ctx, CheckpointResult{
		Step: "G.01", Kind: steperr.KindPrecondition, Message: "Source RBD image exists",
		Pool: srcEphemeral, Image: "disk-1", Passed: true,
	})
	journal.Checkpoint(ctx, CheckpointResult{
		Step: "G.03", Kind: steperr.KindPrecondition, Message: "Snapshot does not exist",
		Pool: srcEphemeral, Image: "disk-1", Snapshot: "g1-g2-migration-disk-1", Passed: false, ExitStatus: 0,
	})
	// 没有 run id 的检查点不记录
	journal.Checkpoint(context.Background(), CheckpointResult{Step: "G.04", Passed: true})

	runErr := fmt.Errorf("prepare: %w",
		steperr.New("G.03", steperr.KindPrecondition, "Snapshot does not exist"))
	require.NoError(t, journal.Finish(ctx, "run-1", runErr))

	got, err := journal.GetRun(ctx, &entity.GetRunRequest{ID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStateFailed, got.Run.State)
	assert.Equal(t, 2, got.Run.MappingCount)
	assert.Equal(t, "G.03", got.Run.FailedStep)
	assert.Equal(t, string(steperr.KindPrecondition), got.Run.FailedKind)
	assert.Equal(t, runErr.Error(), got.Run.Error)
	assert.NotEmpty(t, got.Run.StartedAt)
	assert.NotEmpty(t, got.Run.FinishedAt)

	checkpoints, err := journal.ListCheckpoints(ctx, &entity.GetRunRequest{ID: "run-1"})
	require.NoError(t, err)
	require.Len(t, checkpoints.Checkpoints, 2)
	first, second := checkpoints.Checkpoints[0], checkpoints.Checkpoints[1]
	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, "G.01", first.Step)
	assert.True(t, first.Passed)
	assert.Equal(t, 2, second.Seq)
	assert.Equal(t, "G.03", second.Step)
	assert.Equal(t, string(steperr.KindPrecondition), second.Kind)
	assert.Equal(t, "g1-g2-migration-disk-1", second.Snapshot)
	assert.False(t, second.Passed)
	assert.Regexp(t, `^ckpt-\d+$`, second.ID)
}

func TestJournal_ListRuns(t *testing.T) {
	t.Parallel()

	journal := setupTestJournal(t)
	ctx := context.Background()

	require.NoError(t, journal.Begin(ctx, "run-ok", 1))
	require.NoError(t, journal.Finish(ctx, "run-ok", nil))
	require.NoError(t, journal.Begin(ctx, "run-bad", 1))
	require.NoError(t, journal.Finish(ctx, "run-bad", errors.New("dial tcp: connection refused")))
	require.NoError(t, journal.Begin(ctx, "run-open", 3))

	testcases := []struct {
		name string
		req  *entity.ListRunsRequest
		want []string
	}{
		{name: "nil request", req: nil, want: []string{"run-ok", "run-bad", "run-open"}},
		{name: "by state", req: &entity.ListRunsRequest{State: entity.RunStateFailed}, want: []string{"run-bad"}},
		{name: "running", req: &entity.ListRunsRequest{State: entity.RunStateRunning}, want: []string{"run-open"}},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp, err := journal.ListRuns(ctx, tc.req)
			require.NoError(t, err)
			ids := make([]string, 0, len(resp.Runs))
			for _, run := range resp.Runs {
				ids = append(ids, run.ID)
			}
			assert.ElementsMatch(t, tc.want, ids)
		})
	}

	resp, err := journal.ListRuns(ctx, &entity.ListRunsRequest{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Runs, 1)

	bad, err := journal.GetRun(ctx, &entity.GetRunRequest{ID: "run-bad"})
	require.NoError(t, err)
	assert.Empty(t, bad.Run.FailedStep)
	assert.Equal(t, "dial tcp: connection refused", bad.Run.Error)
}

func TestJournal_NotFound(t *testing.T) {
	t.Parallel()

	journal := setupTestJournal(t)
	ctx := context.Background()

	_, err := journal.GetRun(ctx, &entity.GetRunRequest{ID: "run-missing"})
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = journal.ListCheckpoints(ctx, &entity.GetRunRequest{ID: "run-missing"})
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.Error(t, journal.Finish(ctx, "run-missing", nil))
}

func TestJournal_WithMigrator(t *testing.T) {
	t.Parallel()

	journal := setupTestJournal(t)
	cluster := rbdtest.NewCluster().
		AddImage(srcEphemeral, "disk-1", 10*gib).
		AddImage(dstCinder, "vol-99", 10*gib)
	rec := &recorder{}
	observers := Observers{journal, rec}
	ctx := WithRunID(context.Background(), "run-e2e")

	require.NoError(t, journal.Begin(ctx, "run-e2e", 1))
	err := newTestMigrator(cluster, WithObserver(observers)).
		MigrateImage(ctx, mapping(srcEphemeral, "disk-1", "vol-99"))
	require.NoError(t, journal.Finish(ctx, "run-e2e", err))
	require.NoError(t, err)

	resp, err := journal.ListCheckpoints(ctx, &entity.GetRunRequest{ID: "run-e2e"})
	require.NoError(t, err)
	require.Len(t, resp.Checkpoints, len(rec.steps()))
	for i, cp := range resp.Checkpoints {
		assert.Equal(t, i+1, cp.Seq)
		assert.Equal(t, rec.steps()[i], cp.Step)
		assert.True(t, cp.Passed)
	}
	assert.Equal(t, "G.01", resp.Checkpoints[0].Step)
	assert.Equal(t, "G.17", resp.Checkpoints[len(resp.Checkpoints)-1].Step)

	run, err := journal.GetRun(ctx, &entity.GetRunRequest{ID: "run-e2e"})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStateSucceeded, run.Run.State)
	assert.Empty(t, run.Run.Error)
}

func TestJournal_WithMigratorFailure(t *testing.T) {
	t.Parallel()

	journal := setupTestJournal(t)
	cluster := rbdtest.NewCluster().
		AddImage(srcEphemeral, "disk-1", 10*gib).
		AddImage(dstCinder, "vol-99", 10*gib).
		FailScript(rbd.ScriptImageFlatten, srcEphemeral, "", 1)
	ctx := WithRunID(context.Background(), "run-fail")

	require.NoError(t, journal.Begin(ctx, "run-fail", 1))
	err := newTestMigrator(cluster, WithObserver(journal)).
		MigrateImage(ctx, mapping(srcEphemeral, "disk-1", "vol-99"))
	require.Error(t, err)
	require.NoError(t, journal.Finish(ctx, "run-fail", err))

	run, err := journal.GetRun(ctx, &entity.GetRunRequest{ID: "run-fail"})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStateFailed, run.Run.State)
	assert.Equal(t, "G.10", run.Run.FailedStep)
	assert.Equal(t, string(steperr.KindOperation), run.Run.FailedKind)

	resp, err := journal.ListCheckpoints(ctx, &entity.GetRunRequest{ID: "run-fail"})
	require.NoError(t, err)
	last := resp.Checkpoints[len(resp.Checkpoints)-1]
	assert.Equal(t, "G.10", last.Step)
	assert.False(t, last.Passed)
}
