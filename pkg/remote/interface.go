package remote

import (
	"context"
	"strings"
)

// Executor 定义远程命令执行器接口
// 所有调用都是同步阻塞的
type Executor interface {
	// Execute 执行一条命令，命令已经由调用方完成拼接和转义
	Execute(ctx context.Context, command string) (*Result, error)
}

// Result 远程命令的执行结果
type Result struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// OK 退出码是否为 0
func (r *Result) OK() bool {
	return r.ExitStatus == 0
}

// Lines 返回去掉首尾空白后按行切分的标准输出，空输出返回空切片
func (r *Result) Lines() []string {
	out := strings.TrimSpace(r.Stdout)
	if out == "" {
		return []string{}
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
