package diag

// Metrics 为最小指标接口，由流水线逐阶段调用。
// 默认实现为 no-op；适配层可替换实现以导出计数。
type Metrics interface {
	// IncStave 累加已完成谱表数。
	IncStave()
	// IncBeat 累加已分组节拍数。
	IncBeat(n int)
	// IncError 按分类累加错误计数。
	IncError(code Code)
	// ObserveStageDuration 记录阶段耗时（毫秒）。
	ObserveStageDuration(stage Stage, durMS int64)
}

// NopMetrics 丢弃全部观测值。
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) IncStave()                         {}
func (NopMetrics) IncBeat(int)                       {}
func (NopMetrics) IncError(Code)                     {}
func (NopMetrics) ObserveStageDuration(Stage, int64) {}
