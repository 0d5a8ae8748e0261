package contract

import (
	"context"
	"io"
)

// Renderer: 将类型化 Score 渲染为一种输出格式。
// 约束：
// 1) 仅消费类型化结构，不回读手稿文本；
// 2) 输出以 io.Reader 流式返回，可为二进制；
// 3) 相同输入产出字节级确定的结果；
// 4) 渲染不修改 Score；
// 5) 无内部并发。
type Renderer interface {
	Render(ctx context.Context, score *Score) (io.Reader, error)
	// Ext 返回工件扩展名（含点，如 ".ly"），Writer 依此命名。
	Ext() string
}
