package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type runIDKey struct{}

// WithRunID 把迁移任务 ID 放进 context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID 从 context 中取出迁移任务 ID
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// FailureDump 迁移失败时写入诊断文件的内容
type FailureDump struct {
	RunID     string         `yaml:"run_id,omitempty"`
	Step      string         `yaml:"step"`
	Kind      steperr.Kind   `yaml:"kind"`
	Message   string         `yaml:"message"`
	Context   map[string]any `yaml:"context,omitempty"`
	RawError  string         `yaml:"raw_error,omitempty"`
	Error     string         `yaml:"error"`
	Timestamp time.Time      `yaml:"timestamp"`
}

// DumpOnFailure 在顶层调用一次
// 错误链中包含 *steperr.Error 时把失败现场写入 path，始终原样返回 err
func DumpOnFailure(ctx context.Context, path string, err error) error {
	if err == nil || path == "" {
		return err
	}
	stepErr, ok := steperr.From(err)
	if !ok {
		return err
	}

	dump := FailureDump{
		RunID:     RunID(ctx),
		Step:      stepErr.Code,
		Kind:      stepErr.Kind,
		Message:   stepErr.Message,
		Context:   stepErr.Context,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
	if stepErr.RawError != nil {
		dump.RawError = stepErr.RawError.Error()
	}

	logger := zerolog.Ctx(ctx)
	if writeErr := writeDump(path, &dump); writeErr != nil {
		logger.Error().Err(writeErr).Str("path", path).Msg("Failed to write exception trace file")
		return err
	}
	logger.Warn().Str("path", path).Str("step", stepErr.Code).Msg("Exception trace file written")
	return err
}

func writeDump(path string, dump *FailureDump) error {
	data, err := yaml.Marshal(dump)
	if err != nil {
		return fmt.Errorf("marshal failure dump: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write failure dump: %w", err)
	}
	return nil
}
