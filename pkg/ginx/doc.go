// Package ginx 提供 gin 框架的 handler 适配器，自动绑定参数并以 JSON 渲染响应
//
// 支持的 handler 函数签名：
//
//	// 有参数，有返回值，有 error
//	func(c *gin.Context, args *Args) (resp, error)
//
//	// 无参数，有返回值，有 error
//	func(c *gin.Context) (resp, error)
//
//	// 无参数，只有返回值
//	func(c *gin.Context) resp
//
// handler 返回 *ginx.Error 时使用其中的 HTTP 状态码，其他错误返回 500。
//
// 使用示例：
//
//	router := gin.New()
//	router.GET("/api/runs/:id", ginx.Adapt5(func(c *gin.Context, args *GetRunArgs) (*Run, error) {
//	    return nil, ginx.NotFound("RunNotFound", "run does not exist")
//	}))
//	router.GET("/healthz", ginx.Adapt2(func(c *gin.Context) string {
//	    return "ok"
//	}))
package ginx
