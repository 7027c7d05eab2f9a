package rbd

import (
	"context"
	"errors"
	"testing"

	"github.com/jimyag/rbdmig/pkg/remote"
	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestClient(executor remote.Executor, deepCopy bool) *Client {
	identities := NewIdentityResolver([]string{"volumes", "ephemeral-vms"}, "client.cinder", "client.migrator")
	return New(executor, identities, Options{BaseDir: "/root/migrator", MigrateVolumeSnapshots: deepCopy})
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("default base dir", func(t *testing.T) {
		t.Parallel()
		client := New(remote.NewMockExecutor(), NewIdentityResolver(nil, "a", "b"), Options{})
		assert.Equal(t, "/root/migrator", client.baseDir)
		assert.Equal(t, ScriptImageCopy, client.CopyScript())
	})

	t.Run("deep copy", func(t *testing.T) {
		t.Parallel()
		client := New(remote.NewMockExecutor(), NewIdentityResolver(nil, "a", "b"), Options{
			BaseDir:                "/opt/scripts",
			MigrateVolumeSnapshots: true,
		})
		assert.Equal(t, "/opt/scripts/ceph-rbd-image-info.sh", client.ScriptPath(ScriptImageInfo))
		assert.Equal(t, ScriptImageDeepCopy, client.CopyScript())
	})
}

func TestClient_Command(t *testing.T) {
	t.Parallel()

	client := newTestClient(remote.NewMockExecutor(), false)

	testcases := []struct {
		name     string
		identity string
		script   string
		args     []string
		want     string
	}{
		{
			name:   "no identity",
			script: ScriptImagesList,
			args:   []string{"volumes"},
			want:   "/root/migrator/ceph-rbd-images-list.sh volumes",
		},
		{
			name:     "with identity",
			identity: "client.cinder",
			script:   ScriptImageExists,
			args:     []string{"volumes", "volume-1"},
			want:     "CEPH_USER=client.cinder /root/migrator/ceph-rbd-image-exists.sh volumes volume-1",
		},
		{
			name:     "argument with space is quoted",
			identity: "client.migrator",
			script:   ScriptImageDelete,
			args:     []string{"pool", "bad name"},
			want:     "CEPH_USER=client.migrator /root/migrator/ceph-rbd-image-delete.sh pool 'bad name'",
		},
		{
			name:   "no args",
			script: ScriptCephAccessible,
			want:   "/root/migrator/ceph-accessible.sh",
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, client.Command(tc.identity, tc.script, tc.args...))
		})
	}
}

func TestClient_Operations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	testcases := []struct {
		name     string
		deepCopy bool
		call     func(c *Client) (*OpResult, error)
		command  string
	}{
		{
			name:    "exists on source pool uses privileged identity",
			call:    func(c *Client) (*OpResult, error) { return c.Exists(ctx, "volumes", "volume-1") },
			command: "CEPH_USER=client.cinder /root/migrator/ceph-rbd-image-exists.sh volumes volume-1",
		},
		{
			name:    "delete on destination pool uses migrator identity",
			call:    func(c *Client) (*OpResult, error) { return c.Delete(ctx, "cloud-volumes", "volume-2") },
			command: "CEPH_USER=client.migrator /root/migrator/ceph-rbd-image-delete.sh cloud-volumes volume-2",
		},
		{
			name:    "flatten",
			call:    func(c *Client) (*OpResult, error) { return c.Flatten(ctx, "volumes", "g1-g2-migration-volume-1") },
			command: "CEPH_USER=client.cinder /root/migrator/ceph-rbd-image-flatten.sh volumes g1-g2-migration-volume-1",
		},
		{
			name: "clone decides identity by destination pool",
			call: func(c *Client) (*OpResult, error) {
				return c.Clone(ctx, "volumes", "volume-1", "snap", "volumes", "clone")
			},
			command: "CEPH_USER=client.cinder /root/migrator/ceph-rbd-image-clone.sh volumes volume-1 snap volumes clone",
		},
		{
			name: "copy to destination pool uses migrator identity",
			call: func(c *Client) (*OpResult, error) {
				return c.Copy(ctx, "volumes", "clone", "cloud-volumes", "volume-2")
			},
			command: "CEPH_USER=client.migrator /root/migrator/ceph-rbd-image-copy.sh volumes clone cloud-volumes volume-2",
		},
		{
			name:     "deep copy",
			deepCopy: true,
			call: func(c *Client) (*OpResult, error) {
				return c.Copy(ctx, "volumes", "clone", "cloud-volumes", "volume-2")
			},
			command: "CEPH_USER=client.migrator /root/migrator/ceph-rbd-image-deepcopy.sh volumes clone cloud-volumes volume-2",
		},
		{
			name: "snapshot exists",
			call: func(c *Client) (*OpResult, error) {
				return c.SnapshotExists(ctx, "ephemeral-vms", "srv_disk", "snap")
			},
			command: "CEPH_USER=client.cinder /root/migrator/ceph-rbd-image-snapshot-exists.sh ephemeral-vms srv_disk snap",
		},
		{
			name: "snapshot create",
			call: func(c *Client) (*OpResult, error) {
				return c.SnapshotCreate(ctx, "volumes", "volume-1", "snap")
			},
			command: "CEPH_USER=client.cinder /root/migrator/ceph-rbd-image-snapshot-create.sh volumes volume-1 snap",
		},
		{
			name: "snapshot delete",
			call: func(c *Client) (*OpResult, error) {
				return c.SnapshotDelete(ctx, "volumes", "volume-1", "snap")
			},
			command: "CEPH_USER=client.cinder /root/migrator/ceph-rbd-image-snapshot-delete.sh volumes volume-1 snap",
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			executor := remote.NewMockExecutor()
			executor.On("Execute", mock.Anything, tc.command).
				Return(&remote.Result{Stdout: "line-1\nline-2\n", Stderr: " warn \n", ExitStatus: 3}, nil).Once()

			res, err := tc.call(newTestClient(executor, tc.deepCopy))
			require.NoError(t, err)
			assert.Equal(t, tc.command, res.Command)
			assert.Equal(t, []string{"line-1", "line-2"}, res.Lines)
			assert.Equal(t, "warn", res.Stderr)
			assert.Equal(t, 3, res.ExitStatus)
			assert.False(t, res.OK())
			executor.AssertExpectations(t)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	t.Parallel()

	executor := remote.NewMockExecutor()
	executor.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := newTestClient(executor, false).Exists(context.Background(), "volumes", "volume-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), ScriptImageExists)
}

func TestClient_List(t *testing.T) {
	t.Parallel()

	const command = "/root/migrator/ceph-rbd-images-list.sh volumes"

	testcases := []struct {
		name    string
		result  *remote.Result
		want    []string
		wantErr string
	}{
		{
			name:   "images",
			result: &remote.Result{Stdout: "volume-1\nvolume-2\n"},
			want:   []string{"volume-1", "volume-2"},
		},
		{
			name:    "non-zero exit",
			result:  &remote.Result{Stderr: "rbd: error opening pool", ExitStatus: 2},
			wantErr: "list RBD pool images",
		},
		{
			name:    "empty output",
			result:  &remote.Result{Stdout: "\n"},
			wantErr: "RBD pool image list is empty",
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			executor := remote.NewMockExecutor()
			executor.On("Execute", mock.Anything, command).Return(tc.result, nil)

			images, err := newTestClient(executor, false).List(context.Background(), "volumes")
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, steperr.ErrOperationFailure)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, images)
		})
	}
}

func TestClient_Info(t *testing.T) {
	t.Parallel()

	const command = "CEPH_USER=client.migrator /root/migrator/ceph-rbd-image-info.sh cloud-volumes volume-2"

	t.Run("parse info", func(t *testing.T) {
		t.Parallel()

		executor := remote.NewMockExecutor()
		executor.On("Execute", mock.Anything, command).Return(&remote.Result{
			Stdout: `{"name":"volume-2","size":10737418241,"format":2,"features":["layering"]}` + "\n",
		}, nil)

		info, res, err := newTestClient(executor, false).Info(context.Background(), "cloud-volumes", "volume-2")
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.Equal(t, "volume-2", info.Name)
		assert.Equal(t, uint64(10737418241), info.Size)
		assert.Equal(t, uint64(11), info.SizeGiB())
		assert.Nil(t, info.Parent)
	})

	t.Run("missing image is a parse error", func(t *testing.T) {
		t.Parallel()

		executor := remote.NewMockExecutor()
		executor.On("Execute", mock.Anything, command).Return(&remote.Result{
			Stderr:     "rbd: error opening image volume-2: (2) No such file or directory",
			ExitStatus: 2,
		}, nil)

		info, res, err := newTestClient(executor, false).Info(context.Background(), "cloud-volumes", "volume-2")
		require.Error(t, err)
		assert.Nil(t, info)
		require.NotNil(t, res)
		assert.Equal(t, 2, res.ExitStatus)
		assert.ErrorIs(t, err, steperr.ErrParse)

		stepErr, ok := steperr.From(err)
		require.True(t, ok)
		assert.Equal(t, "volume-2", stepErr.Context["image"])
		assert.Equal(t, 2, stepErr.Context["exit_status"])
	})
}

func TestParseImageInfo(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name    string
		output  string
		wantErr bool
		check   func(t *testing.T, info *ImageInfo)
	}{
		{
			name:   "clone with parent",
			output: `{"name":"c","size":1073741824,"parent":{"pool":"volumes","image":"v","snapshot":"s"}}`,
			check: func(t *testing.T, info *ImageInfo) {
				require.NotNil(t, info.Parent)
				assert.Equal(t, "s", info.Parent.Snapshot)
				assert.Equal(t, uint64(1), info.SizeGiB())
			},
		},
		{
			name:   "zero size",
			output: `{"name":"z","size":0}`,
			check: func(t *testing.T, info *ImageInfo) {
				assert.Equal(t, uint64(0), info.SizeGiB())
			},
		},
		{name: "empty", output: "", wantErr: true},
		{name: "not json", output: "rbd: error", wantErr: true},
		{name: "no size", output: `{"name":"x"}`, wantErr: true},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			info, err := ParseImageInfo(tc.output)
			if tc.wantErr {
				assert.ErrorIs(t, err, steperr.ErrParse)
				return
			}
			require.NoError(t, err)
			tc.check(t, info)
		})
	}
}
