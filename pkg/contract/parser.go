package contract

import (
	"context"
	"io"
)

// Parser: 将单个手稿字节流解析为 Document（行分类 + 按列切分）。
// 约束：
// 1) 不跨文件合并；
// 2) 仅做 CRLF→LF 与 NFC 的最小归一，不改变文本语义；
// 3) 列以显示单元格（grapheme cluster）计数，Devanagari 组合序列占一格；
// 4) 无法识别的符号保留为 Unknown 元素，不丢弃也不报错；
// 5) 无内部并发、幂等。
type Parser interface {
	Parse(ctx context.Context, fileID FileID, r io.Reader) (*Document, error)
}
