package ginx

import (
	"github.com/gin-gonic/gin"
)

// bindArgs 绑定请求参数到 args 结构体
// 优先级：JSON Body > URI 参数 > Query 参数
func bindArgs(ctx *gin.Context, args interface{}) error {
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(args); err != nil {
			return err
		}
		_ = ctx.ShouldBindUri(args)
		_ = ctx.ShouldBindQuery(args)
		return nil
	}

	if err := ctx.ShouldBindUri(args); err != nil {
		return err
	}
	return ctx.ShouldBindQuery(args)
}
