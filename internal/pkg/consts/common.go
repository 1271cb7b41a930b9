package consts

// 本地视图接口 gin.Context 中的 key
const (
	CtxUserID       = "user_id"
	CtxRole         = "role"
	CtxCapabilities = "capabilities"
)

// 后台 trace_id 前缀
const (
	TracePrefixJob    = "job"
	TracePrefixSocket = "push"
	TracePrefixSync   = "sync"
)
