package job

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTargets 表示作业没有任何渲染目标。
	ErrNoTargets = errors.New("job: 没有渲染目标")
	// ErrMixedTemplates 表示同一文档内出现了尺寸不同的模板。
	ErrMixedTemplates = errors.New("job: 同一文档只能使用一种模板尺寸")
	// ErrSideMismatch 表示 butterfly 模式下目标的正反面与其所在位置不符。
	ErrSideMismatch = errors.New("job: 目标正反面与对折位置不符")
	// ErrEmptyDocument 表示所有目标都失败，文档没有任何页面。
	ErrEmptyDocument = errors.New("job: 文档没有可输出的页面")
)

// FinalizeError is the only fatal job error: the assembled document could not
// be produced. Summary still describes the per-target outcome.
type FinalizeError struct {
	Summary Summary
	Err     error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("生成文档失败（成功 %d/%d）: %v", e.Summary.Succeeded, e.Summary.Total, e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }
