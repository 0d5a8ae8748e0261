package spatial

import "github.com/rivo/uniseg"

// 列几何：所有列号按显示单元格（grapheme cluster 宽度）计，
// 保证内容行与上下注记行在天城文、宽字符场景下仍然对齐。

// Cell: 一个显示单元格序列中的簇。
type Cell struct {
	Text  string
	Col   int
	Width int
}

// Cells 将一行文本切分为显示单元格序列。
// 约束：
// - 每个簇至少占 1 列（孤立组合符按 1 列处理，保证列号单调）；
// - 制表符按单空格处理；
// - 输入应已 NFC 规范化。
func Cells(s string) []Cell {
	var out []Cell
	col := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		t := g.Str()
		if t == "\t" {
			t = " "
		}
		w := g.Width()
		if w < 1 {
			w = 1
		}
		out = append(out, Cell{Text: t, Col: col, Width: w})
		col += w
	}
	return out
}

// LineWidth 返回一行文本占用的显示列数（与 Cells 的推进一致）。
func LineWidth(s string) int {
	cs := Cells(s)
	if len(cs) == 0 {
		return 0
	}
	last := cs[len(cs)-1]
	return last.Col + last.Width
}

// UpperAnnotation 报告一行是否只含上注记字符（. : ~ _ 与空白）。
// 空行不算注记行。
func UpperAnnotation(s string) bool {
	return annotationOnly(s, true)
}

// LowerAnnotation 报告一行是否只含下注记字符（. : _ 与空白）。
func LowerAnnotation(s string) bool {
	return annotationOnly(s, false)
}

func annotationOnly(s string, allowTilde bool) bool {
	seen := false
	for _, r := range s {
		switch r {
		case ' ', '\t':
			continue
		case '.', ':', '_':
			seen = true
		case '~':
			if !allowTilde {
				return false
			}
			seen = true
		default:
			return false
		}
	}
	return seen
}
