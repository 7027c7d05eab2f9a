package idgen

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// Generator 递增 ID 生成器
type Generator struct {
	sf *sonyflake.Sonyflake
}

var (
	defaultGenerator     *Generator
	defaultGeneratorOnce sync.Once
)

// DefaultGenerator 返回默认的 ID 生成器
func DefaultGenerator() *Generator {
	defaultGeneratorOnce.Do(func() {
		defaultGenerator = New()
	})
	return defaultGenerator
}

// New 创建新的 ID 生成器
func New() *Generator {
	startTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: startTime,
	})
	if sf == nil {
		// 迁移主机上可能没有私有 IP，这时用进程号作为机器 ID
		sf = sonyflake.NewSonyflake(sonyflake.Settings{
			StartTime: startTime,
			MachineID: func() (uint16, error) {
				return uint16(os.Getpid() & 0xffff), nil
			},
		})
	}

	return &Generator{
		sf: sf,
	}
}

// generateIDWithPrefix 生成带前缀的 ID
func (g *Generator) generateIDWithPrefix(prefix, errorMsg string) (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errorMsg, err)
	}
	return fmt.Sprintf("%s-%d", prefix, id), nil
}

// GenerateRunID 生成迁移运行 ID（格式：run-{递增 ID}）
func (g *Generator) GenerateRunID() (string, error) {
	return g.generateIDWithPrefix("run", "generate run ID")
}

// GenerateCheckpointID 生成检查点 ID（格式：ckpt-{递增 ID}）
func (g *Generator) GenerateCheckpointID() (string, error) {
	return g.generateIDWithPrefix("ckpt", "generate checkpoint ID")
}

// GenerateRunID 使用默认生成器生成运行 ID
func GenerateRunID() (string, error) {
	return DefaultGenerator().GenerateRunID()
}

// GenerateCheckpointID 使用默认生成器生成检查点 ID
func GenerateCheckpointID() (string, error) {
	return DefaultGenerator().GenerateCheckpointID()
}
