package rbdmig

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jimyag/rbdmig/internal/rbdmig/config"
	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/jimyag/rbdmig/internal/rbdmig/service"
	"github.com/jimyag/rbdmig/pkg/rbd/rbdtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	testcases := []struct {
		name      string
		cfg       config.LogConfig
		wantLevel zerolog.Level
		wantErr   bool
	}{
		{name: "default level", cfg: config.LogConfig{Format: "json"}, wantLevel: zerolog.InfoLevel},
		{name: "debug", cfg: config.LogConfig{Level: "DEBUG", Format: "json"}, wantLevel: zerolog.DebugLevel},
		{name: "console", cfg: config.LogConfig{Level: "warn", Format: "console"}, wantLevel: zerolog.WarnLevel},
		{name: "bad level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(tc.cfg, &buf)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantLevel, logger.GetLevel())
			require.NotNil(t, zerolog.DefaultContextLogger)

			logger.Error().Msg("snapshot collision")
			assert.Contains(t, buf.String(), "snapshot collision")
		})
	}
}

func TestGraceLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := &graceLogger{logger: &logger}
	l.Info("[START] [%d/%d] starting service: %s", 1, 1, "Journal API")
	l.Error("[TIMEOUT] shutdown timeout reached")
	assert.Contains(t, buf.String(), "[START] [1/1] starting service: Journal API")
	assert.Contains(t, buf.String(), "shutdown timeout reached")
	assert.Contains(t, buf.String(), `"component":"grace"`)
}

func testConfig(t *testing.T, journal bool) *config.Config {
	t.Helper()

	cfg := config.Default()
	if journal {
		cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
		cfg.Journal.Listen = "127.0.0.1:0"
	}
	return cfg
}

func TestApp_WithoutJournal(t *testing.T) {
	cluster := rbdtest.NewCluster().
		AddImage("prod-cinder-volumes", "volume-1", 1<<30).
		AddImage("prod-ephemeral-vms", "srv-1_disk", 1<<30)

	app, err := New(testConfig(t, false), cluster)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Journal())
	assert.Equal(t, "ceph-rbd-image-copy.sh", app.Client().CopyScript())

	_, err = NewServer(app)
	assert.Error(t, err)

	images, err := app.Preflight().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"volume-1"}, images["prod-cinder-volumes"])

	m, found, err := app.Discovery().EphemeralDiskMapping(context.Background(), "srv-1", "", images["prod-ephemeral-vms"])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "cloud-cinder-volumes-prod-brno", m.Destination.Pool)
}

func TestApp_MigrateWithJournal(t *testing.T) {
	cluster := rbdtest.NewCluster().
		AddImage("prod-ephemeral-vms", "srv-1_disk", 1<<30).
		AddImage("cloud-cinder-volumes-prod-brno", "vol-1", 1<<30)

	app, err := New(testConfig(t, true), cluster)
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.Journal())

	ctx := service.WithRunID(context.Background(), "run-1")
	require.NoError(t, app.Journal().Begin(ctx, "run-1", 1))

	mapping := entity.BlockDeviceMapping{
		Source:      entity.BlockDeviceSource{Pool: "prod-ephemeral-vms", ImageName: "srv-1_disk"},
		Destination: entity.BlockDeviceDestination{Pool: "cloud-cinder-volumes-prod-brno", VolumeID: "vol-1"},
	}
	runErr := app.Migrator().MigrateImage(ctx, mapping)
	require.NoError(t, runErr)
	require.NoError(t, app.Journal().Finish(ctx, "run-1", runErr))

	resp, err := app.Journal().ListCheckpoints(ctx, &entity.GetRunRequest{ID: "run-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Checkpoints)
	assert.Equal(t, "G.01", resp.Checkpoints[0].Step)

	server, err := NewServer(app)
	require.NoError(t, err)
	assert.Equal(t, "rbdmig journal server", server.Name())
}

func TestServer_Run(t *testing.T) {
	t.Run("listen address in use", func(t *testing.T) {
		holder, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil && strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("sandbox does not allow listening")
		}
		require.NoError(t, err)
		defer holder.Close()

		cfg := testConfig(t, true)
		cfg.Journal.Listen = holder.Addr().String()
		app, err := New(cfg, rbdtest.NewCluster())
		require.NoError(t, err)
		defer app.Close()

		server, err := NewServer(app)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = server.Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "address already in use")
		assert.Contains(t, err.Error(), holder.Addr().String())
	})

	t.Run("context canceled", func(t *testing.T) {
		app, err := New(testConfig(t, true), rbdtest.NewCluster())
		require.NoError(t, err)
		defer app.Close()

		server, err := NewServer(app)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		err = server.Run(ctx)
		if err != nil && strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("sandbox does not allow listening")
		}
		assert.NoError(t, err)
	})
}
