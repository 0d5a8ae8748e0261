package manuscript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stavetext/pkg/contract"
)

func parse(t *testing.T, src string) *contract.Document {
	t.Helper()
	p, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	doc, err := p.Parse(context.Background(), "test.st", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

// 完整文档：标题、指令、注记行挂接、内容行切分。
func TestParseDocument(t *testing.T) {
	src := "Evening Song\n\nkey: D\ntempo: 120\n\n.  :\n|1- 2 | 3-4\n____\nhe-llo moon\n"
	doc := parse(t, src)

	if doc.Title != "Evening Song" {
		t.Fatalf("title: %q", doc.Title)
	}
	if doc.Directives["key"] != "D" || doc.Directives["tempo"] != "120" {
		t.Fatalf("directives: %v", doc.Directives)
	}
	if len(doc.Staves) != 1 {
		t.Fatalf("staves: %d", len(doc.Staves))
	}
	st := doc.Staves[0]
	if st.Line != 7 {
		t.Fatalf("stave line: %d", st.Line)
	}
	if len(st.Above) != 1 || st.Above[0].Text != ".  :" || st.Above[0].Line != 6 {
		t.Fatalf("above: %+v", st.Above)
	}
	if len(st.Below) != 2 || st.Below[0].Text != "____" || st.Below[1].Text != "he-llo moon" {
		t.Fatalf("below: %+v", st.Below)
	}
	if len(st.Elements) != 11 {
		t.Fatalf("elements: %d", len(st.Elements))
	}
	if _, ok := st.Elements[0].(*contract.Barline); !ok {
		t.Fatalf("element 0: %T", st.Elements[0])
	}
	n, ok := st.Elements[1].(*contract.Note)
	if !ok || n.Sym != "1" || n.Span != (contract.Span{Line: 7, Start: 1, End: 2}) {
		t.Fatalf("element 1: %#v", st.Elements[1])
	}
	if _, ok := st.Elements[2].(*contract.Dash); !ok {
		t.Fatalf("element 2: %T", st.Elements[2])
	}
}

// 天城文按显示单元格取列；双簇符号贪婪匹配。
func TestParseDevanagariColumns(t *testing.T) {
	doc := parse(t, "स रे ग म\n")
	if len(doc.Staves) != 1 {
		t.Fatalf("staves: %d", len(doc.Staves))
	}
	var notes []*contract.Note
	for _, el := range doc.Staves[0].Elements {
		if n, ok := el.(*contract.Note); ok {
			notes = append(notes, n)
		}
	}
	if len(notes) != 4 {
		t.Fatalf("notes: %d", len(notes))
	}
	if notes[1].Sym != "रे" {
		t.Fatalf("note 1 sym: %q", notes[1].Sym)
	}
	if notes[1].Span.Start != 2 || notes[1].Span.End != 3 {
		t.Fatalf("note 1 span: %+v", notes[1].Span)
	}
	if notes[3].Sym != "म" || notes[3].Span.Start != 6 {
		t.Fatalf("note 3: %#v", notes[3])
	}
}

// 小节线全部双字符形态。
func TestParseBarlineStyles(t *testing.T) {
	doc := parse(t, "|: 1 2 :| 3 |] 4 ||\n")
	var styles []contract.BarStyle
	for _, el := range doc.Staves[0].Elements {
		if b, ok := el.(*contract.Barline); ok {
			styles = append(styles, b.Style)
		}
	}
	want := []contract.BarStyle{contract.BarRepeatStart, contract.BarRepeatEnd, contract.BarFinal, contract.BarDouble}
	if len(styles) != len(want) {
		t.Fatalf("barlines: %v", styles)
	}
	for i := range want {
		if styles[i] != want[i] {
			t.Fatalf("barline %d: got %v, want %v", i, styles[i], want[i])
		}
	}
}

// 变音后缀与鼓语音节贪婪匹配。
func TestParseGreedySymbols(t *testing.T) {
	doc := parse(t, "| S# mb dha 1bb |\n")
	var syms []string
	for _, el := range doc.Staves[0].Elements {
		if n, ok := el.(*contract.Note); ok {
			syms = append(syms, n.Sym)
		}
	}
	want := []string{"S#", "mb", "dha", "1bb"}
	if len(syms) != len(want) {
		t.Fatalf("notes: %v", syms)
	}
	for i := range want {
		if syms[i] != want[i] {
			t.Fatalf("note %d: got %q, want %q", i, syms[i], want[i])
		}
	}
}

// 换气记号独立成元素。
func TestParseBreath(t *testing.T) {
	doc := parse(t, "|1' -2|\n")
	els := doc.Staves[0].Elements
	if _, ok := els[2].(*contract.Breath); !ok {
		t.Fatalf("element 2: %T", els[2])
	}
	if _, ok := els[4].(*contract.Dash); !ok {
		t.Fatalf("element 4: %T", els[4])
	}
}

// 无小节线时需 >=2 词且音乐占比达到 70%。
func TestParseContentHeuristic(t *testing.T) {
	if doc := parse(t, "1-2-3\n"); len(doc.Staves) != 0 {
		t.Fatalf("single token became content: %d staves", len(doc.Staves))
	}
	if doc := parse(t, "just some plain words here\n"); len(doc.Staves) != 0 {
		t.Fatalf("prose became content: %d staves", len(doc.Staves))
	}
	if doc := parse(t, "1 2 3 4\n"); len(doc.Staves) != 1 {
		t.Fatalf("note row missed: %d staves", len(doc.Staves))
	}
	if doc := parse(t, "1 2 3 lyric lyric\n"); len(doc.Staves) != 0 {
		t.Fatalf("3/5 musical passed threshold")
	}
}

// 空行分块与同块多内容行都切出独立谱表。
func TestParseMultipleStaves(t *testing.T) {
	if doc := parse(t, "|1 2\n\n|3 4\n"); len(doc.Staves) != 2 {
		t.Fatalf("blank-separated: %d staves", len(doc.Staves))
	}
	doc := parse(t, "|1 2\n|3 4\n")
	if len(doc.Staves) != 2 {
		t.Fatalf("adjacent content lines: %d staves", len(doc.Staves))
	}
	if len(doc.Staves[0].Below) != 0 {
		t.Fatalf("first stave stole second content line: %+v", doc.Staves[0].Below)
	}
}

// 指令在前则无标题；纯头部文档不报错。
func TestParseHeaderOnly(t *testing.T) {
	doc := parse(t, "key: G\n\nMy Song\n")
	if doc.Title != "" {
		t.Fatalf("title after directive: %q", doc.Title)
	}
	if doc.Directives["key"] != "G" {
		t.Fatalf("directives: %v", doc.Directives)
	}
	if len(doc.Staves) != 0 {
		t.Fatalf("staves: %d", len(doc.Staves))
	}
}

// CRLF 输入规范化。
func TestParseCRLF(t *testing.T) {
	doc := parse(t, "Tune\r\n\r\n|1 2|\r\n")
	if doc.Title != "Tune" {
		t.Fatalf("title: %q", doc.Title)
	}
	if len(doc.Staves) != 1 {
		t.Fatalf("staves: %d", len(doc.Staves))
	}
}

// 严格模式下未知符号使解析失败；默认模式保留 Unknown。
func TestParseStrict(t *testing.T) {
	lax, _ := New(Options{})
	doc, err := lax.Parse(context.Background(), "x.st", strings.NewReader("|1 x 2|\n"))
	if err != nil {
		t.Fatalf("lax parse: %v", err)
	}
	var unknown *contract.Unknown
	for _, el := range doc.Staves[0].Elements {
		if u, ok := el.(*contract.Unknown); ok {
			unknown = u
		}
	}
	if unknown == nil || unknown.Sym != "x" {
		t.Fatalf("unknown not preserved: %#v", unknown)
	}

	strict, _ := New(Options{Strict: true})
	if _, err := strict.Parse(context.Background(), "x.st", strings.NewReader("|1 x 2|\n")); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("strict parse error: %v", err)
	}
}

// 已取消的上下文立即返回。
func TestParseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, _ := New(Options{})
	if _, err := p.Parse(ctx, "x.st", strings.NewReader("|1|")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err: %v", err)
	}
}

func BenchmarkTokenize(b *testing.B) {
	line := strings.Repeat("|1-2-3 S r g 45 dha dhin ", 40)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		tokenize(1, line)
	}
}
