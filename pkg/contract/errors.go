package contract

import "errors"

// 最小错误分类（哨兵；一律用 errors.Is 判定，不做字符串匹配）。
var (
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidInput: 输入不满足最低结构要求（如非文本字节流）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvariantViolation: 领域不变量违例（如节拍时值总和偏离 1/4）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrRenderUnsupported: 渲染器不支持输入中的某个结构。
	ErrRenderUnsupported = errors.New("render unsupported")
)
