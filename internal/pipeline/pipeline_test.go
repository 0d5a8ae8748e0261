package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"stavetext/internal/diag"
	"stavetext/pkg/contract"
)

// 通用桩件 ----------------------------------------------------

// stubReader 依序产出固定文件名；yield 报错即中止（与 fs Reader 语义一致）。
type stubReader struct {
	ids    []string
	yields int
}

func (r *stubReader) Iterate(ctx context.Context, roots []string, yield func(contract.FileID, io.ReadCloser) error) error {
	for _, id := range r.ids {
		r.yields++
		if err := yield(contract.FileID(id), io.NopCloser(strings.NewReader("1 2 3"))); err != nil {
			return err
		}
	}
	return nil
}

// noteStave 构造 n 个数字谱音符、以空格分隔的谱表（n 个单音节拍）。
func noteStave(n int) *contract.Stave {
	st := &contract.Stave{Line: 1}
	col := 0
	for i := 0; i < n; i++ {
		if i > 0 {
			st.Elements = append(st.Elements, &contract.Space{Width: 1, Span: contract.Span{Line: 1, Start: col, End: col + 1}})
			col++
		}
		sym := string(rune('1' + i%7))
		st.Elements = append(st.Elements, &contract.Note{Sym: sym, Span: contract.Span{Line: 1, Start: col, End: col + 1}})
		col++
	}
	return st
}

// stubParser 产出手工构造的 Document；可在首个文件上失败。
type stubParser struct {
	calls     int
	failFirst bool
	staves    []int // 每个谱表的音符数
}

func (p *stubParser) Parse(ctx context.Context, fid contract.FileID, r io.Reader) (*contract.Document, error) {
	p.calls++
	if p.failFirst && p.calls == 1 {
		return nil, fmt.Errorf("line 1: %w", contract.ErrInvalidInput)
	}
	doc := &contract.Document{FileID: fid, Title: "t", Directives: map[string]string{"key": "C"}}
	for _, n := range p.staves {
		doc.Staves = append(doc.Staves, noteStave(n))
	}
	return doc, nil
}

type stubRenderer struct {
	scores []*contract.Score
	fail   bool
}

func (r *stubRenderer) Render(ctx context.Context, score *contract.Score) (io.Reader, error) {
	r.scores = append(r.scores, score)
	if r.fail {
		return nil, contract.ErrRenderUnsupported
	}
	return strings.NewReader("out"), nil
}

func (r *stubRenderer) Ext() string { return ".ly" }

type stubWriter struct {
	ids  []contract.ArtifactID
	outs []string
	fail error
}

func (w *stubWriter) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if w.fail != nil {
		return w.fail
	}
	b, _ := io.ReadAll(r)
	w.ids = append(w.ids, id)
	w.outs = append(w.outs, string(b))
	return nil
}

func comps(rd *stubReader, p *stubParser, x *stubRenderer, w *stubWriter) Components {
	return Components{Reader: rd, Parser: p, Renderer: x, Writer: w}
}

// 正常路径：解析→逐谱表加工→渲染→按扩展名落盘
func TestRunHappyPath(t *testing.T) {
	rd := &stubReader{ids: []string{"tunes/song.st"}}
	p := &stubParser{staves: []int{3, 2}}
	x := &stubRenderer{}
	w := &stubWriter{}
	set := Settings{Inputs: []string{"in"}, Concurrency: 2, Renderer: "lilypond"}
	logger := diag.NewLogger("c", "debug", "")
	if err := Run(context.Background(), comps(rd, p, x, w), set, logger); err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if len(w.ids) != 1 || w.ids[0] != "tunes/song.ly" {
		t.Fatalf("工件命名错误: %v", w.ids)
	}
	if w.outs[0] != "out" {
		t.Fatalf("工件内容错误: %q", w.outs[0])
	}
	if len(x.scores) != 1 {
		t.Fatalf("应渲染一次: %d", len(x.scores))
	}
	sc := x.scores[0]
	if sc.Title != "t" || sc.Directives["key"] != "C" {
		t.Fatalf("元数据未透传: %+v", sc)
	}
	if len(sc.Staves) != 2 {
		t.Fatalf("谱表数错误: %d", len(sc.Staves))
	}
	if sc.Staves[0].System != contract.Number {
		t.Fatalf("系统判定未执行: %v", sc.Staves[0].System)
	}
	if n := beatCount(sc.Staves[0]); n != 3 {
		t.Fatalf("首谱表节拍数错误: %d", n)
	}
}

// 结果顺序与文档内谱表顺序一致（并发下）
func TestRunOrderPreserved(t *testing.T) {
	sizes := []int{5, 1, 4, 2, 7, 3, 6, 1}
	rd := &stubReader{ids: []string{"m.st"}}
	p := &stubParser{staves: sizes}
	x := &stubRenderer{}
	w := &stubWriter{}
	set := Settings{Inputs: []string{"in"}, Concurrency: 4}
	if err := Run(context.Background(), comps(rd, p, x, w), set, nil); err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	sc := x.scores[0]
	if len(sc.Staves) != len(sizes) {
		t.Fatalf("谱表数错误: %d", len(sc.Staves))
	}
	for i, n := range sizes {
		if got := beatCount(sc.Staves[i]); got != n {
			t.Fatalf("谱表 %d 节拍数 %d, 期望 %d（顺序被打乱）", i, got, n)
		}
	}
}

// 解析错误：记录首错但继续后续文件
func TestRunParseErrorContinues(t *testing.T) {
	rd := &stubReader{ids: []string{"bad.st", "good.st"}}
	p := &stubParser{failFirst: true, staves: []int{1}}
	x := &stubRenderer{}
	w := &stubWriter{}
	set := Settings{Inputs: []string{"in"}, Concurrency: 1}
	err := Run(context.Background(), comps(rd, p, x, w), set, nil)
	if !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("应返回首个解析错误, got %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("第二个文件应被解析: calls=%d", p.calls)
	}
	if len(w.ids) != 1 || w.ids[0] != "good.ly" {
		t.Fatalf("好文件应照常落盘: %v", w.ids)
	}
}

// 渲染错误：记录后继续
func TestRunRenderErrorContinues(t *testing.T) {
	rd := &stubReader{ids: []string{"a.st", "b.st"}}
	p := &stubParser{staves: []int{1}}
	x := &stubRenderer{fail: true}
	w := &stubWriter{}
	set := Settings{Inputs: []string{"in"}, Concurrency: 1}
	err := Run(context.Background(), comps(rd, p, x, w), set, nil)
	if !errors.Is(err, contract.ErrRenderUnsupported) {
		t.Fatalf("应返回渲染错误, got %v", err)
	}
	if len(x.scores) != 2 {
		t.Fatalf("两个文件都应尝试渲染: %d", len(x.scores))
	}
	if len(w.ids) != 0 {
		t.Fatalf("不应有落盘: %v", w.ids)
	}
}

// 写盘错误归类 io：中止遍历
func TestRunWriteErrorFatal(t *testing.T) {
	rd := &stubReader{ids: []string{"a.st", "b.st"}}
	p := &stubParser{staves: []int{1}}
	x := &stubRenderer{}
	w := &stubWriter{fail: contract.ErrPathInvalid}
	set := Settings{Inputs: []string{"in"}, Concurrency: 1}
	err := Run(context.Background(), comps(rd, p, x, w), set, nil)
	if err == nil || diag.Classify(err) != diag.CodeIO {
		t.Fatalf("应返回 io 错误, got %v", err)
	}
	if rd.yields != 1 {
		t.Fatalf("io 错误应中止遍历: yields=%d", rd.yields)
	}
}

// 上下文取消
func TestRunCanceled(t *testing.T) {
	rd := &stubReader{ids: []string{"a.st"}}
	p := &stubParser{staves: []int{1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, comps(rd, p, &stubRenderer{}, &stubWriter{}), Settings{Inputs: []string{"in"}, Concurrency: 1}, nil)
	if err == nil || diag.Classify(err) != diag.CodeCanceled {
		t.Fatalf("应返回取消错误, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("取消后不应解析: %d", p.calls)
	}
}

// 组件缺失
func TestRunMissingComponents(t *testing.T) {
	err := Run(context.Background(), Components{}, Settings{Inputs: []string{"in"}}, nil)
	if err == nil {
		t.Fatalf("应返回 sanity 错误")
	}
	err = Run(context.Background(), comps(&stubReader{}, &stubParser{}, &stubRenderer{}, &stubWriter{}), Settings{}, nil)
	if err == nil {
		t.Fatalf("空 inputs 应失败")
	}
}

// 工件命名
func TestArtifactID(t *testing.T) {
	cases := []struct{ in, ext, want string }{
		{"a/b.st", ".ly", "a/b.ly"},
		{"stdin", ".mid", "stdin.mid"},
		{"x.txt", ".json", "x.json"},
		{"noext", ".txt", "noext.txt"},
	}
	for _, c := range cases {
		if got := artifactID(contract.FileID(c.in), c.ext); string(got) != c.want {
			t.Fatalf("artifactID(%q,%q)=%q, 期望 %q", c.in, c.ext, got, c.want)
		}
	}
}
