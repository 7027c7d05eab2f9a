package service

import (
	"testing"
	"time"

	"github.com/jimyag/rbdmig/internal/rbdmig/repository/model"
	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunModelToEntity(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Minute)

	testcases := []struct {
		name         string
		finishedAt   *time.Time
		wantFinished string
	}{
		{name: "running", finishedAt: nil, wantFinished: ""},
		{name: "finished", finishedAt: &finished, wantFinished: "2026-03-01T10:05:00Z"},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e, err := runModelToEntity(&model.Run{
				ID:           "run-7",
				State:        "failed",
				MappingCount: 3,
				FailedStep:   "G.11",
				FailedKind:   "OperationFailure",
				Error:        "copy failed",
				StartedAt:    started,
				FinishedAt:   tc.finishedAt,
			})
			require.NoError(t, err)
			assert.Equal(t, "run-7", e.ID)
			assert.Equal(t, "failed", e.State)
			assert.Equal(t, 3, e.MappingCount)
			assert.Equal(t, "G.11", e.FailedStep)
			assert.Equal(t, "OperationFailure", e.FailedKind)
			assert.Equal(t, "copy failed", e.Error)
			assert.Equal(t, "2026-03-01T10:00:00Z", e.StartedAt)
			assert.Equal(t, tc.wantFinished, e.FinishedAt)
		})
	}
}

func TestCheckpointConversion(t *testing.T) {
	t.Parallel()

	m, err := checkpointResultToModel("run-7", 4, CheckpointResult{
		Step:       "G.12",
		Kind:       steperr.KindPostcondition,
		Message:    "Destination RBD image exists",
		Pool:       dstCinder,
		Image:      "vol-99",
		Passed:     true,
		ExitStatus: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "run-7", m.RunID)
	assert.Equal(t, 4, m.Seq)
	assert.Equal(t, "G.12", m.Step)
	assert.Equal(t, "PostconditionViolation", m.Kind)
	assert.Equal(t, dstCinder, m.Pool)
	assert.True(t, m.Passed)
	assert.False(t, m.CreatedAt.IsZero())

	m.ID = "ckpt-1"
	m.CreatedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e, err := checkpointModelToEntity(m)
	require.NoError(t, err)
	assert.Equal(t, "ckpt-1", e.ID)
	assert.Equal(t, "run-7", e.RunID)
	assert.Equal(t, 4, e.Seq)
	assert.Equal(t, "vol-99", e.Image)
	assert.Equal(t, "2026-03-01T10:00:00Z", e.CreatedAt)
}
