// Package report 将类型化乐谱渲染为终端检视文本。
// 每个输出项一行：节拍带显示时值与连音徽标，标记原样列出，
// 谱表结尾给出计数小结。
// 约束：
// 1) 着色经 lipgloss；非 TTY 或 color=never 时退化为纯文本，
//    信息不丢失（标志以字符后缀表示，不靠颜色区分）；
// 2) 音符后缀：八度 '/,，连句 *，拍组 _，音节 =xx；
// 3) 输出仅依赖类型化输入，不回读手稿文本。
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"stavetext/pkg/contract"
)

// Options: 渲染器配置（JSON，未知键拒绝）。
type Options struct {
	// Color: auto（默认，按 stdout TTY 判定）| always | never。
	Color string `json:"color"`
}

type styles struct {
	head   lipgloss.Style
	badge  lipgloss.Style
	bar    lipgloss.Style
	dim    lipgloss.Style
	system map[contract.NotationSystem]lipgloss.Style
}

type Renderer struct {
	st styles
}

var _ contract.Renderer = (*Renderer)(nil)

func New(o Options) (*Renderer, error) {
	lr := lipgloss.NewRenderer(os.Stdout)
	switch o.Color {
	case "", "auto":
	case "always":
		lr.SetColorProfile(termenv.ANSI256)
	case "never":
		lr.SetColorProfile(termenv.Ascii)
	default:
		return nil, fmt.Errorf("report: unknown color mode %q", o.Color)
	}
	return &Renderer{st: newStyles(lr)}, nil
}

func newStyles(lr *lipgloss.Renderer) styles {
	return styles{
		head:  lr.NewStyle().Bold(true),
		badge: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		bar:   lr.NewStyle().Bold(true),
		dim:   lr.NewStyle().Faint(true),
		system: map[contract.NotationSystem]lipgloss.Style{
			contract.Number:     lr.NewStyle().Foreground(lipgloss.Color("39")),
			contract.Western:    lr.NewStyle().Foreground(lipgloss.Color("170")),
			contract.Sargam:     lr.NewStyle().Foreground(lipgloss.Color("208")),
			contract.Bhatkhande: lr.NewStyle().Foreground(lipgloss.Color("114")),
			contract.Tabla:      lr.NewStyle().Foreground(lipgloss.Color("179")),
		},
	}
}

func (r *Renderer) Ext() string { return ".txt" }

func (r *Renderer) Render(ctx context.Context, score *contract.Score) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var b strings.Builder
	line := "[score] " + string(score.FileID)
	if score.Title != "" {
		line += " | " + score.Title
	}
	b.WriteString(r.st.head.Render(line) + "\n")
	for _, k := range sortedKeys(score.Directives) {
		fmt.Fprintf(&b, "[dir] %s = %s\n", k, score.Directives[k])
	}
	for i, sr := range score.Staves {
		b.WriteString(r.st.head.Render(fmt.Sprintf("[stave] %d | %s", i+1, sr.System)) + "\n")
		var beats, notes, rests, marks int
		for j, it := range sr.Items {
			fmt.Fprintf(&b, "%4d | ", j+1)
			switch v := it.(type) {
			case *contract.Beat:
				beats++
				n, rs := r.writeBeat(&b, v)
				notes += n
				rests += rs
			case contract.Marker:
				marks++
				r.writeMarker(&b, v.El)
			}
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[sum] 节拍 %d | 音符 %d | 休止 %d | 标记 %d\n", beats, notes, rests, marks)
	}
	return bytes.NewReader([]byte(b.String())), nil
}

func (r *Renderer) writeBeat(b *strings.Builder, bt *contract.Beat) (notes, rests int) {
	b.WriteString("拍")
	if bt.TiedToPrevious {
		b.WriteString(" " + r.st.bar.Render("～"))
	}
	if bt.IsTuplet {
		b.WriteString(" " + r.st.badge.Render(fmt.Sprintf("[%d:%d]", bt.TupletNum, bt.TupletDen)))
	}
	for _, be := range bt.Elements {
		b.WriteByte(' ')
		switch el := be.El.(type) {
		case *contract.Note:
			notes++
			b.WriteString(r.noteToken(el, be.Display))
		case *contract.Rest:
			rests++
			b.WriteString(r.st.dim.Render("休(" + ratString(be.Display) + ")"))
		}
	}
	return notes, rests
}

func (r *Renderer) noteToken(n *contract.Note, display *big.Rat) string {
	sym := n.Sym + octMarks(n.Octave)
	st, ok := r.st.system[n.System]
	if !ok {
		st = r.st.dim
	}
	tok := st.Render(sym)
	if n.InSlur {
		tok += r.st.dim.Render("*")
	}
	if n.InBeatGroup {
		tok += r.st.dim.Render("_")
	}
	tok += r.st.dim.Render("(" + ratString(display) + ")")
	if n.Syllable != "" {
		tok += "=" + n.Syllable
	}
	return tok
}

func (r *Renderer) writeMarker(b *strings.Builder, el contract.Element) {
	switch v := el.(type) {
	case *contract.Barline:
		b.WriteString("小节线 " + r.st.bar.Render(v.Style.String()))
	case *contract.Breath:
		b.WriteString("换气 '")
	case *contract.SlurBound:
		b.WriteString("连句 " + openClose(v.Open))
	case *contract.GroupBound:
		b.WriteString("拍组 " + openClose(v.Open))
	case *contract.Unknown:
		b.WriteString("未知 " + r.st.dim.Render(fmt.Sprintf("%q", v.Sym)))
	default:
		fmt.Fprintf(b, "%T", el)
	}
}

func openClose(open bool) string {
	if open {
		return "开"
	}
	return "闭"
}

func octMarks(o int) string {
	if o > 0 {
		return strings.Repeat("'", o)
	}
	if o < 0 {
		return strings.Repeat(",", -o)
	}
	return ""
}

func ratString(r *big.Rat) string {
	if r == nil {
		return "?"
	}
	return r.RatString()
}

func sortedKeys(m map[string]string) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}
