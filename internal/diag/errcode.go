package diag

import (
	"context"
	"errors"
	"os"
	"time"

	"stavetext/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总与退出码映射（映射在 cmd 层）。
type Code string

const (
	CodeConfig   Code = "config"
	CodeParse    Code = "parse"
	CodeResolve  Code = "resolve"
	CodeSpan     Code = "span"
	CodeRhythm   Code = "rhythm"
	CodeRender   Code = "render"
	CodeIO       Code = "io"
	CodeCanceled Code = "canceled"
	CodeInternal Code = "internal"
)

// Stage 标识流水线阶段（结构化日志字段 stage 与错误归属）。
type Stage string

const (
	StageConfig  Stage = "config"
	StageRead    Stage = "read"
	StageParse   Stage = "parse"
	StageResolve Stage = "resolve"
	StageSpan    Stage = "span"
	StageRhythm  Stage = "rhythm"
	StageRender  Stage = "render"
	StageWrite   Stage = "write"
)

// stageErr 为阶段归属包装；Classify 借助 errors.As 提取。
type stageErr struct {
	stage Stage
	err   error
}

func (e *stageErr) Error() string { return string(e.stage) + ": " + e.err.Error() }
func (e *stageErr) Unwrap() error { return e.err }

// AtStage 将 err 标记为发生于 stage；err 为 nil 时返回 nil。
func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &stageErr{stage: stage, err: err}
}

// stageCode 阶段到分类代码的固定映射；读写均归 io。
func stageCode(s Stage) Code {
	switch s {
	case StageConfig:
		return CodeConfig
	case StageParse:
		return CodeParse
	case StageResolve:
		return CodeResolve
	case StageSpan:
		return CodeSpan
	case StageRhythm:
		return CodeRhythm
	case StageRender:
		return CodeRender
	case StageRead, StageWrite:
		return CodeIO
	default:
		return CodeInternal
	}
}

// Classify 将错误归为最小分类。
// 说明：仅依赖 errors.Is/As（哨兵、阶段包装、标准库错误类型），不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeInternal
	}
	// 取消/超时优先，压过阶段归属
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	// 阶段归属
	var serr *stageErr
	if errors.As(err, &serr) {
		return stageCode(serr.stage)
	}
	// 未带阶段的哨兵
	if errors.Is(err, contract.ErrPathInvalid) {
		return CodeIO
	}
	if errors.Is(err, contract.ErrInvalidInput) {
		return CodeParse
	}
	if errors.Is(err, contract.ErrInvariantViolation) {
		return CodeRhythm
	}
	if errors.Is(err, contract.ErrRenderUnsupported) {
		return CodeRender
	}
	// I/O
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeInternal
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
