package rbdtest

import (
	"context"
	"testing"

	"github.com/jimyag/rbdmig/pkg/rbd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCluster_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cluster := NewCluster().AddImage("volumes", "v1", 5<<30)

	res, err := cluster.Execute(ctx, "CEPH_USER=client.cinder /root/migrator/ceph-rbd-image-snapshot-create.sh volumes v1 s")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.True(t, cluster.HasSnapshot("volumes", "v1", "s"))

	res, err = cluster.Execute(ctx, "CEPH_USER=client.cinder /root/migrator/ceph-rbd-image-clone.sh volumes v1 s volumes c")
	require.NoError(t, err)
	assert.True(t, res.OK())
	require.NotNil(t, cluster.Parent("volumes", "c"))

	// 有克隆依赖时不能删除快照
	res, err = cluster.Execute(ctx, "/x/ceph-rbd-image-snapshot-delete.sh volumes v1 s")
	require.NoError(t, err)
	assert.False(t, res.OK())

	res, err = cluster.Execute(ctx, "/x/ceph-rbd-image-flatten.sh volumes c")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Nil(t, cluster.Parent("volumes", "c"))

	res, err = cluster.Execute(ctx, "/x/ceph-rbd-image-snapshot-delete.sh volumes v1 s")
	require.NoError(t, err)
	assert.True(t, res.OK())

	calls := cluster.Calls()
	require.Len(t, calls, 5)
	assert.Equal(t, "client.cinder", calls[0].Identity)
	assert.Equal(t, rbd.ScriptSnapshotCreate, calls[0].Script)
	assert.Equal(t, []string{"volumes", "v1", "s"}, calls[0].Args)
	assert.Empty(t, calls[2].Identity)
}

func TestCluster_Faults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fail script", func(t *testing.T) {
		t.Parallel()
		cluster := NewCluster().AddImage("p", "a", 1).FailScript(rbd.ScriptImageExists, "p", "a", 2)
		res, err := cluster.Execute(ctx, "/x/ceph-rbd-image-exists.sh p a")
		require.NoError(t, err)
		assert.Equal(t, 2, res.ExitStatus)
	})

	t.Run("sticky delete", func(t *testing.T) {
		t.Parallel()
		cluster := NewCluster().AddImage("p", "a", 1).StickyImage("p", "a")
		res, err := cluster.Execute(ctx, "/x/ceph-rbd-image-delete.sh p a")
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.True(t, cluster.HasImage("p", "a"))
	})

	t.Run("unknown script", func(t *testing.T) {
		t.Parallel()
		res, err := NewCluster().Execute(ctx, "/x/unknown.sh")
		require.NoError(t, err)
		assert.Equal(t, 127, res.ExitStatus)
	})

	t.Run("deep copy keeps snapshots", func(t *testing.T) {
		t.Parallel()
		cluster := NewCluster().AddImage("p", "a", 1).AddSnapshot("p", "a", "s1")
		res, err := cluster.Execute(ctx, "/x/ceph-rbd-image-deepcopy.sh p a q b")
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.True(t, cluster.HasSnapshot("q", "b", "s1"))

		res, err = cluster.Execute(ctx, "/x/ceph-rbd-image-copy.sh p a q c")
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.False(t, cluster.HasSnapshot("q", "c", "s1"))
	})
}
