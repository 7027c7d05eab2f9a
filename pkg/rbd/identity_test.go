package rbd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityResolver_Resolve(t *testing.T) {
	t.Parallel()

	resolver := NewIdentityResolver([]string{"volumes", "ephemeral-vms"}, "client.cinder", "client.migrator")

	testcases := []struct {
		name    string
		srcPool string
		dstPool string
		want    string
	}{
		{name: "source cinder pool", srcPool: "volumes", want: "client.cinder"},
		{name: "source ephemeral pool", srcPool: "ephemeral-vms", want: "client.cinder"},
		{name: "destination pool", srcPool: "cloud-volumes", want: "client.migrator"},
		{name: "destination overrides source", srcPool: "volumes", dstPool: "cloud-volumes", want: "client.migrator"},
		{name: "source to source", srcPool: "cloud-volumes", dstPool: "volumes", want: "client.cinder"},
		{name: "unknown pool", srcPool: "rbd", want: "client.migrator"},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, resolver.Resolve(tc.srcPool, tc.dstPool))
		})
	}
}

func TestIdentityResolver_Deterministic(t *testing.T) {
	t.Parallel()

	resolver := NewIdentityResolver([]string{"volumes"}, "client.cinder", "client.migrator")
	pairs := [][2]string{
		{"volumes", ""},
		{"volumes", "cloud-volumes"},
		{"cloud-volumes", ""},
		{"cloud-volumes", "volumes"},
	}

	first := make([]string, len(pairs))
	for i, p := range pairs {
		first[i] = resolver.Resolve(p[0], p[1])
	}
	// 倒序再解析一遍，结果只取决于参数
	for i := len(pairs) - 1; i >= 0; i-- {
		assert.Equal(t, first[i], resolver.Resolve(pairs[i][0], pairs[i][1]))
	}
}
