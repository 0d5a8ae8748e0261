package manuscript

import (
	"strings"

	"stavetext/internal/catalog"
	"stavetext/internal/spatial"
	"stavetext/pkg/contract"
)

// 内容行切分。
// 约束：
// 1) 列按显示单元格计，与注记行对齐；
// 2) 小节线双字符形态（|| |] |: :|）贪婪优先；
// 3) 音高符号贪婪最长匹配（含变音后缀、双簇天城文、鼓语音节）；
// 4) 每个 '-' 独立成延长线元素；
// 5) 识别不了的单元格原样保留为 Unknown。

func tokenize(lineNo int, text string) []contract.Element {
	cells := spatial.Cells(text)
	var out []contract.Element
	for i := 0; i < len(cells); {
		c := cells[i]
		switch c.Text {
		case " ":
			j := i
			for j < len(cells) && cells[j].Text == " " {
				j++
			}
			end := cells[j-1].Col + cells[j-1].Width
			out = append(out, &contract.Space{Width: end - c.Col, Span: span(lineNo, c.Col, end)})
			i = j
		case "|":
			style, n := contract.BarSingle, 1
			if i+1 < len(cells) {
				switch cells[i+1].Text {
				case "|":
					style, n = contract.BarDouble, 2
				case "]":
					style, n = contract.BarFinal, 2
				case ":":
					style, n = contract.BarRepeatStart, 2
				}
			}
			last := cells[i+n-1]
			out = append(out, &contract.Barline{Style: style, Span: span(lineNo, c.Col, last.Col+last.Width)})
			i += n
		case ":":
			if i+1 < len(cells) && cells[i+1].Text == "|" {
				last := cells[i+1]
				out = append(out, &contract.Barline{Style: contract.BarRepeatEnd, Span: span(lineNo, c.Col, last.Col+last.Width)})
				i += 2
				continue
			}
			out = append(out, &contract.Unknown{Sym: ":", Span: span(lineNo, c.Col, c.Col+c.Width)})
			i++
		case "-":
			out = append(out, &contract.Dash{Span: span(lineNo, c.Col, c.Col+c.Width)})
			i++
		case "'":
			out = append(out, &contract.Breath{Span: span(lineNo, c.Col, c.Col+c.Width)})
			i++
		default:
			if sym, ok := catalog.Match(joinCells(cells[i:])); ok {
				n := cellCount(cells[i:], len(sym))
				last := cells[i+n-1]
				out = append(out, &contract.Note{Sym: sym, Span: span(lineNo, c.Col, last.Col+last.Width)})
				i += n
				continue
			}
			out = append(out, &contract.Unknown{Sym: c.Text, Span: span(lineNo, c.Col, c.Col+c.Width)})
			i++
		}
	}
	return out
}

func span(line, start, end int) contract.Span {
	return contract.Span{Line: line, Start: start, End: end}
}

func joinCells(cells []spatial.Cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(c.Text)
	}
	return b.String()
}

// cellCount 返回覆盖 byteLen 个字节所需的单元格数。
func cellCount(cells []spatial.Cell, byteLen int) int {
	n, got := 0, 0
	for _, c := range cells {
		if got >= byteLen {
			break
		}
		got += len(c.Text)
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}
