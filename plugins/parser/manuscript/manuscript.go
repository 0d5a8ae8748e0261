// Package manuscript 将空间排布的文本手稿解析为类型化文档。
// 流程：行规范化（CRLF、NFC）-> 块切分 -> 头部提取 -> 谱表归组
// -> 内容行切分。上下注记行与歌词行原样挂到所属谱表，交由
// 空间映射阶段消化。
package manuscript

import (
	"context"
	"fmt"
	"io"
	"strings"

	"stavetext/internal/catalog"
	"stavetext/internal/spatial"
	"stavetext/pkg/contract"
)

// Options: 解析器配置（JSON，未知键拒绝）。
type Options struct {
	// Strict: true 时内容行出现未知符号即解析失败；默认宽容透传。
	Strict bool `json:"strict"`
}

type Parser struct {
	strict bool
}

var _ contract.Parser = (*Parser)(nil)

func New(o Options) (*Parser, error) {
	return &Parser{strict: o.Strict}, nil
}

func (p *Parser) Parse(ctx context.Context, id contract.FileID, r io.Reader) (*contract.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("manuscript: read %s: %w", id, err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = catalog.Normalize(text)
	lines := strings.Split(text, "\n")

	doc := &contract.Document{FileID: id}
	blocks := splitBlocks(lines)
	first := firstContentBlock(blocks, lines)

	headerEnd := len(lines)
	if first >= 0 {
		headerEnd = blocks[first].start
	}
	parseHeader(doc, lines[:headerEnd])
	if first < 0 {
		return doc, nil
	}
	for _, b := range blocks[first:] {
		buildStaves(doc, lines, b)
	}
	if p.strict {
		if err := firstUnknown(doc); err != nil {
			return nil, fmt.Errorf("manuscript: %s: %w", id, err)
		}
	}
	return doc, nil
}

// block: 连续非空行的行号区间 [start, end)。
type block struct {
	start, end int
}

func splitBlocks(lines []string) []block {
	var out []block
	start := -1
	for i, ln := range lines {
		if blank(ln) {
			if start >= 0 {
				out = append(out, block{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, block{start, len(lines)})
	}
	return out
}

func firstContentBlock(blocks []block, lines []string) int {
	for i, b := range blocks {
		for j := b.start; j < b.end; j++ {
			if contentLine(lines[j]) {
				return i
			}
		}
	}
	return -1
}

// parseHeader 提取标题与指令。
// 标题只能是头部第一个非空行，且其后必须是空行；
// 指令行全部收进 Directives，同键后写覆盖先写。
func parseHeader(doc *contract.Document, lines []string) {
	sawAny := false
	for i, ln := range lines {
		if blank(ln) {
			continue
		}
		if k, v, ok := directive(ln); ok {
			if doc.Directives == nil {
				doc.Directives = make(map[string]string)
			}
			doc.Directives[k] = v
			sawAny = true
			continue
		}
		if !sawAny && doc.Title == "" && (i+1 >= len(lines) || blank(lines[i+1])) {
			doc.Title = strings.TrimSpace(ln)
		}
		sawAny = true
	}
}

// buildStaves 把一个块按内容行切成谱表。
// 块首内容行的上邻注记行为其 Above（由近及远）；
// 每个内容行之后到下一内容行之前的所有行为其 Below。
func buildStaves(doc *contract.Document, lines []string, b block) {
	var contents []int
	for i := b.start; i < b.end; i++ {
		if contentLine(lines[i]) {
			contents = append(contents, i)
		}
	}
	if len(contents) == 0 {
		return
	}
	for k, ci := range contents {
		st := &contract.Stave{Line: ci + 1}
		if k == 0 {
			for j := ci - 1; j >= b.start; j-- {
				if !spatial.UpperAnnotation(lines[j]) {
					break
				}
				st.Above = append(st.Above, contract.TextLine{Line: j + 1, Text: lines[j]})
			}
		}
		hi := b.end
		if k+1 < len(contents) {
			hi = contents[k+1]
		}
		for j := ci + 1; j < hi; j++ {
			st.Below = append(st.Below, contract.TextLine{Line: j + 1, Text: lines[j]})
		}
		st.Elements = tokenize(ci+1, lines[ci])
		doc.Staves = append(doc.Staves, st)
	}
}

func firstUnknown(doc *contract.Document) error {
	for _, st := range doc.Staves {
		for _, el := range st.Elements {
			if u, ok := el.(*contract.Unknown); ok {
				return fmt.Errorf("line %d col %d: symbol %q: %w", u.Span.Line, u.Span.Start, u.Sym, contract.ErrInvalidInput)
			}
		}
	}
	return nil
}
