// Package lilypond 将类型化乐谱渲染为 LilyPond 源码。
// 音名用默认荷兰语记法（is/es 后缀），八度以 \fixed c' 为基准；
// 时值先查常用表（含附点），查不到按 2 的幂贪心分解并以连线相接。
// 约束：
// 1) 连句与符杠括号由元素上的空间标志推导，不依赖边界记号的流内位置；
// 2) 歌词槽位与 \lyricsto 的自动 melisma 对齐：连线续音与连句跟随音不占槽；
// 3) 输出逐字节确定。
package lilypond

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"stavetext/pkg/contract"
)

const defaultVersion = "2.24.0"

// Options: 渲染器配置（JSON，未知键拒绝）。
type Options struct {
	// Version: 输出头部的 \version 声明；空用 2.24.0。
	Version string `json:"version"`
}

type Renderer struct {
	version string
}

var _ contract.Renderer = (*Renderer)(nil)

func New(o Options) (*Renderer, error) {
	v := strings.TrimSpace(o.Version)
	if v == "" {
		v = defaultVersion
	}
	return &Renderer{version: v}, nil
}

func (r *Renderer) Ext() string { return ".ly" }

func (r *Renderer) Render(ctx context.Context, score *contract.Score) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fl := flatten(score)
	markSlurs(fl)
	markBeams(fl)

	var staveLines []string
	cursor := 0
	for _, sr := range score.Staves {
		toks := emitStave(sr, fl, &cursor)
		if len(toks) == 0 {
			continue
		}
		if len(staveLines) > 0 {
			staveLines[len(staveLines)-1] += ` \break`
		}
		staveLines = append(staveLines, "  "+strings.Join(toks, " "))
	}
	if len(staveLines) == 0 {
		staveLines = []string{"  R1"}
	}

	lyr := lyricTokens(fl)

	var b strings.Builder
	fmt.Fprintf(&b, "\\version %s\n\n", quote(r.version))
	writeHeader(&b, score)

	b.WriteString("melody = \\fixed c' {\n")
	b.WriteString("  \\key c \\major\n")
	b.WriteString("  \\time 4/4\n")
	if t, ok := score.Directives["tempo"]; ok {
		if bpm, err := strconv.Atoi(strings.TrimSpace(t)); err == nil && bpm > 0 {
			fmt.Fprintf(&b, "  \\tempo 4 = %d\n", bpm)
		}
	}
	for _, ln := range staveLines {
		b.WriteString(ln)
		b.WriteByte('\n')
	}
	b.WriteString("}\n\n")

	if len(lyr) > 0 {
		b.WriteString("text = \\lyricmode {\n")
		b.WriteString("  " + strings.Join(lyr, " ") + "\n")
		b.WriteString("}\n\n")
		b.WriteString("\\score {\n")
		b.WriteString("  <<\n")
		b.WriteString("    \\new Voice = \"one\" { \\melody }\n")
		b.WriteString("    \\new Lyrics \\lyricsto \"one\" \\text\n")
		b.WriteString("  >>\n")
		b.WriteString("}\n")
	} else {
		b.WriteString("\\score {\n")
		b.WriteString("  \\new Staff { \\melody }\n")
		b.WriteString("}\n")
	}
	return strings.NewReader(b.String()), nil
}

func writeHeader(b *strings.Builder, score *contract.Score) {
	title := score.Title
	if title == "" {
		title = score.Directives["title"]
	}
	composer := score.Directives["composer"]
	if composer == "" {
		composer = score.Directives["author"]
	}
	if title == "" && composer == "" {
		return
	}
	b.WriteString("\\header {\n")
	if title != "" {
		fmt.Fprintf(b, "  title = %s\n", quote(title))
	}
	if composer != "" {
		fmt.Fprintf(b, "  composer = %s\n", quote(composer))
	}
	b.WriteString("}\n\n")
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// sounded: 跨谱表展平后的一个发声单元。
type sounded struct {
	note     *contract.Note // nil 为休止
	display  *big.Rat
	inSlur   bool
	inGroup  bool
	slur     int8 // +1 开 -1 闭
	beam     int8
	consumes bool // 占用一个歌词槽
}

func flatten(score *contract.Score) []sounded {
	var fl []sounded
	for _, sr := range score.Staves {
		for _, it := range sr.Items {
			bt, ok := it.(*contract.Beat)
			if !ok {
				continue
			}
			for i := range bt.Elements {
				be := &bt.Elements[i]
				s := sounded{display: be.Display}
				switch e := be.El.(type) {
				case *contract.Note:
					s.note = e
					s.inSlur, s.inGroup = e.InSlur, e.InBeatGroup
					s.consumes = true
				case *contract.Rest:
					s.inSlur, s.inGroup = e.InSlur, e.InBeatGroup
				}
				if bt.TiedToPrevious && i == 0 {
					s.consumes = false
				}
				fl = append(fl, s)
			}
		}
	}
	return fl
}

// noteRuns 返回标志连续为真的区间内首末音符下标；不足两个音符的区间丢弃。
func noteRuns(fl []sounded, flag func(*sounded) bool) [][2]int {
	var runs [][2]int
	i := 0
	for i < len(fl) {
		if !flag(&fl[i]) {
			i++
			continue
		}
		j := i
		for j < len(fl) && flag(&fl[j]) {
			j++
		}
		first, last := -1, -1
		for k := i; k < j; k++ {
			if fl[k].note != nil {
				if first < 0 {
					first = k
				}
				last = k
			}
		}
		if first >= 0 && first != last {
			runs = append(runs, [2]int{first, last})
		}
		i = j
	}
	return runs
}

func markSlurs(fl []sounded) {
	for _, run := range noteRuns(fl, func(s *sounded) bool { return s.inSlur }) {
		fl[run[0]].slur = 1
		fl[run[1]].slur = -1
		for k := run[0] + 1; k <= run[1]; k++ {
			if fl[k].note != nil {
				fl[k].consumes = false
			}
		}
	}
}

// markBeams 标注符杠括号；区间内含四分及以上音符时整段放弃。
func markBeams(fl []sounded) {
	quarter := big.NewRat(1, 4)
	for _, run := range noteRuns(fl, func(s *sounded) bool { return s.inGroup }) {
		ok := true
		for k := run[0]; k <= run[1]; k++ {
			if fl[k].note != nil && (fl[k].display == nil || fl[k].display.Cmp(quarter) >= 0) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		fl[run[0]].beam = 1
		fl[run[1]].beam = -1
	}
}

func emitStave(sr contract.StaveResult, fl []sounded, cursor *int) []string {
	var toks []string
	lastNote := -1
	for _, it := range sr.Items {
		switch v := it.(type) {
		case *contract.Beat:
			if v.TiedToPrevious {
				tieLast(toks, lastNote)
			}
			start := *cursor
			inner := make([]string, 0, len(v.Elements))
			for range v.Elements {
				inner = append(inner, elemToken(&fl[*cursor]))
				*cursor++
			}
			if v.IsTuplet {
				toks = append(toks, fmt.Sprintf(`\tuplet %d/%d { %s }`, v.TupletNum, v.TupletDen, strings.Join(inner, " ")))
				for k := start; k < *cursor; k++ {
					if fl[k].note != nil {
						lastNote = len(toks) - 1
						break
					}
				}
			} else {
				for i, tk := range inner {
					toks = append(toks, tk)
					if fl[start+i].note != nil {
						lastNote = len(toks) - 1
					}
				}
			}
		case contract.Marker:
			switch m := v.El.(type) {
			case *contract.Barline:
				toks = append(toks, barToken(m.Style))
			case *contract.Breath:
				toks = append(toks, `\breathe`)
			}
		}
	}
	return toks
}

// elemToken 渲染一个发声单元；多段时值的音符内部以连线相接。
func elemToken(s *sounded) string {
	durs := []string{"4"}
	if s.display != nil {
		durs = durTokens(s.display.Num().Int64(), s.display.Denom().Int64())
	}
	if s.note == nil {
		parts := make([]string, len(durs))
		for i, d := range durs {
			parts[i] = "r" + d
		}
		return strings.Join(parts, " ")
	}
	name := pitchName(s.note.Pitch, s.note.Octave)
	parts := make([]string, len(durs))
	for i, d := range durs {
		parts[i] = name + d
	}
	if s.slur > 0 {
		parts[0] += "("
	}
	if s.beam > 0 {
		parts[0] += "["
	}
	for i := 0; i < len(parts)-1; i++ {
		parts[i] += "~"
	}
	if s.slur < 0 {
		parts[len(parts)-1] += ")"
	}
	if s.beam < 0 {
		parts[len(parts)-1] += "]"
	}
	return strings.Join(parts, " ")
}

// tieLast 给最近的音符记号补连线；连音组在右花括号内侧补。
func tieLast(toks []string, lastNote int) {
	if lastNote < 0 || lastNote >= len(toks) {
		return
	}
	t := toks[lastNote]
	if strings.HasSuffix(t, " }") {
		toks[lastNote] = strings.TrimSuffix(t, " }") + "~ }"
		return
	}
	if !strings.HasSuffix(t, "~") {
		toks[lastNote] = t + "~"
	}
}

func barToken(s contract.BarStyle) string {
	switch s {
	case contract.BarDouble:
		return `\bar "||"`
	case contract.BarFinal:
		return `\bar "|."`
	case contract.BarRepeatStart:
		return `\bar ".|:"`
	case contract.BarRepeatEnd:
		return `\bar ":|."`
	default:
		return "|"
	}
}

// lyricTokens 产出歌词记号流；全部为空槽时不输出歌词块。
func lyricTokens(fl []sounded) []string {
	var out []string
	any := false
	for i := range fl {
		s := &fl[i]
		if s.note == nil || !s.consumes {
			continue
		}
		syl := s.note.Syllable
		switch {
		case syl == "":
			out = append(out, "_")
		case strings.HasSuffix(syl, "-"):
			out = append(out, strings.TrimSuffix(syl, "-")+" --")
			any = true
		default:
			out = append(out, syl)
			any = true
		}
	}
	if !any {
		return nil
	}
	return out
}

// 音级 1..7 × 变音 -2..+2 → 荷兰语音名。
var pitchNames = [8][5]string{
	1: {"ceses", "ces", "c", "cis", "cisis"},
	2: {"deses", "des", "d", "dis", "disis"},
	3: {"eses", "es", "e", "eis", "eisis"},
	4: {"feses", "fes", "f", "fis", "fisis"},
	5: {"geses", "ges", "g", "gis", "gisis"},
	6: {"ases", "as", "a", "ais", "aisis"},
	7: {"beses", "bes", "b", "bis", "bisis"},
}

func pitchName(p contract.PitchCode, octave int) string {
	if !p.Valid() {
		return "c"
	}
	name := pitchNames[p.Degree][p.Alter+2]
	switch {
	case octave > 0:
		name += strings.Repeat("'", octave)
	case octave < 0:
		name += strings.Repeat(",", -octave)
	}
	return name
}

// 常用时值直查表（整音符分数 → 记号，含附点与双附点）。
var durMap = map[string]string{
	"1/1": "1", "1/2": "2", "1/4": "4", "1/8": "8",
	"1/16": "16", "1/32": "32", "1/64": "64", "1/128": "128",
	"3/2": "1.", "3/4": "2.", "3/8": "4.", "3/16": "8.",
	"3/32": "16.", "3/64": "32.", "3/128": "64.",
	"7/4": "1..", "7/8": "2..", "7/16": "4..", "7/32": "8..",
	"7/64": "16..", "7/128": "32..",
}

// durTokens 将 num/den（整音符为 1）分解为时值记号序列。
// 每轮先查表（捕获附点余项），再取不超过余量的最大 2 的幂单位；
// 低于 1/128 的余量截断。
func durTokens(num, den int64) []string {
	var out []string
	n, d := num, den
	for n > 0 {
		if s, ok := durMap[strconv.FormatInt(n, 10)+"/"+strconv.FormatInt(d, 10)]; ok {
			out = append(out, s)
			break
		}
		k := int64(1)
		for k < 128 && k*n < d {
			k *= 2
		}
		if k*n < d {
			break
		}
		out = append(out, strconv.FormatInt(k, 10))
		n, d = n*k-d, d*k
		if g := gcd(n, d); g > 1 {
			n, d = n/g, d/g
		}
	}
	if len(out) == 0 {
		out = []string{"4"}
	}
	return out
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}
