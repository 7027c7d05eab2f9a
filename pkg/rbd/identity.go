package rbd

// IdentityResolver 决定某次 ceph 操作使用的客户端身份
type IdentityResolver struct {
	sourcePools map[string]struct{}
	privileged  string
	migrator    string
}

// NewIdentityResolver 创建 IdentityResolver
// sourcePools 是由特权身份管理的源端存储池
func NewIdentityResolver(sourcePools []string, privileged, migrator string) *IdentityResolver {
	pools := make(map[string]struct{}, len(sourcePools))
	for _, p := range sourcePools {
		pools[p] = struct{}{}
	}
	return &IdentityResolver{
		sourcePools: pools,
		privileged:  privileged,
		migrator:    migrator,
	}
}

// Resolve 返回操作使用的身份
// dstPool 非空时按 dstPool 判断，否则按 srcPool 判断
func (r *IdentityResolver) Resolve(srcPool, dstPool string) string {
	pool := srcPool
	if dstPool != "" {
		pool = dstPool
	}
	if _, ok := r.sourcePools[pool]; ok {
		return r.privileged
	}
	return r.migrator
}
