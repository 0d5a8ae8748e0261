package notation

import (
	"testing"

	"stavetext/pkg/contract"
)

func staveOf(syms ...string) *contract.Stave {
	st := &contract.Stave{Line: 1}
	col := 0
	for _, s := range syms {
		st.Elements = append(st.Elements, &contract.Note{
			Sym:  s,
			Span: contract.Span{Line: 1, Start: col, End: col + 1},
		})
		col += 2
	}
	return st
}

func noteAt(t *testing.T, st *contract.Stave, i int) *contract.Note {
	t.Helper()
	n, ok := st.Elements[i].(*contract.Note)
	if !ok {
		t.Fatalf("element %d: not a note: %T", i, st.Elements[i])
	}
	return n
}

// 独占符号环境下的歧义符号按主导系统重查。
func TestResolveAmbiguousBySargamContext(t *testing.T) {
	st := staveOf("S", "r", "g", "D")
	if got := Resolve(st); got != contract.Sargam {
		t.Fatalf("dominant: got %v, want Sargam", got)
	}
	d := noteAt(t, st, 3)
	if d.System != contract.Sargam {
		t.Fatalf("D system: got %v, want Sargam", d.System)
	}
	if d.Pitch != (contract.PitchCode{Degree: 6}) {
		t.Fatalf("D pitch: got %v, want degree 6", d.Pitch)
	}
}

// 同一符号在西方环境下落到不同的音级。
func TestResolveAmbiguousByWesternContext(t *testing.T) {
	st := staveOf("C", "E", "D")
	if got := Resolve(st); got != contract.Western {
		t.Fatalf("dominant: got %v, want Western", got)
	}
	d := noteAt(t, st, 2)
	if d.System != contract.Western || d.Pitch.Degree != 2 {
		t.Fatalf("D: got %v %v, want Western degree 2", d.System, d.Pitch)
	}
}

// 全数字谱表：唯一候选即为终判。
func TestResolveNumberOnly(t *testing.T) {
	st := staveOf("1", "2b", "3", "7##")
	if got := Resolve(st); got != contract.Number {
		t.Fatalf("dominant: got %v, want Number", got)
	}
	if n := noteAt(t, st, 1); n.Pitch != (contract.PitchCode{Degree: 2, Alter: -1}) {
		t.Fatalf("2b: got %v", n.Pitch)
	}
}

// 主导系统表中不含歧义符号时临时指派保持不变。
func TestResolveKeepsProvisionalWhenDominantLacksSymbol(t *testing.T) {
	st := staveOf("1", "2", "3", "D")
	if got := Resolve(st); got != contract.Number {
		t.Fatalf("dominant: got %v, want Number", got)
	}
	d := noteAt(t, st, 3)
	if d.System != contract.Western || d.Pitch.Degree != 2 {
		t.Fatalf("D keeps provisional Western degree 2, got %v %v", d.System, d.Pitch)
	}
}

// 天城文独占符号直接锁定 Bhatkhande，即便独占计数与别家并列。
func TestResolveDevanagariWinsEarliestUnique(t *testing.T) {
	st := staveOf("स", "R")
	if got := Resolve(st); got != contract.Bhatkhande {
		t.Fatalf("dominant: got %v, want Bhatkhande", got)
	}
	if n := noteAt(t, st, 0); n.Pitch.Degree != 1 {
		t.Fatalf("स: got %v", n.Pitch)
	}
	// R 在 Bhatkhande 表中不存在，保持 Sargam 指派。
	if n := noteAt(t, st, 1); n.System != contract.Sargam || n.Pitch.Degree != 2 {
		t.Fatalf("R: got %v %v", n.System, n.Pitch)
	}
}

// 独占计数多者胜：两个 Sargam 独占对一个 Western 独占。
func TestResolveUniqueCountMajority(t *testing.T) {
	st := staveOf("C", "r", "g", "D")
	if got := Resolve(st); got != contract.Sargam {
		t.Fatalf("dominant: got %v, want Sargam", got)
	}
	d := noteAt(t, st, 3)
	if d.Pitch.Degree != 6 {
		t.Fatalf("D: got %v, want Sargam degree 6", d.Pitch)
	}
}

// 纯歧义谱表：计数并列时向第一个音符的临时系统倾斜。
func TestResolveAllAmbiguousFallsBackToFirstNote(t *testing.T) {
	st := staveOf("D", "G", "D")
	if got := Resolve(st); got != contract.Western {
		t.Fatalf("dominant: got %v, want Western", got)
	}
	for i := range st.Elements {
		if n := noteAt(t, st, i); n.System != contract.Western {
			t.Fatalf("note %d: got %v", i, n.System)
		}
	}
}

// 鼓语谱表。
func TestResolveTabla(t *testing.T) {
	st := staveOf("dha", "dhin", "ta", "ka")
	if got := Resolve(st); got != contract.Tabla {
		t.Fatalf("dominant: got %v, want Tabla", got)
	}
	for i := range st.Elements {
		if n := noteAt(t, st, i); n.Pitch.Degree != 1 {
			t.Fatalf("bol %d: got %v", i, n.Pitch)
		}
	}
}

// 空谱表与纯符号谱表不报错，默认 Number。
func TestResolveEmptyStave(t *testing.T) {
	st := &contract.Stave{Line: 1}
	if got := Resolve(st); got != contract.Number {
		t.Fatalf("empty: got %v, want Number", got)
	}
	st2 := &contract.Stave{Line: 1, Elements: []contract.Element{
		&contract.Barline{Style: contract.BarSingle, Span: contract.Span{Line: 1, Start: 0, End: 1}},
		&contract.Dash{Span: contract.Span{Line: 1, Start: 2, End: 3}},
	}}
	if got := Resolve(st2); got != contract.Number {
		t.Fatalf("no notes: got %v, want Number", got)
	}
}

// 重复求解结果稳定，非音符元素不被触碰。
func TestResolveIdempotent(t *testing.T) {
	st := staveOf("S", "D", "m")
	st.Elements = append(st.Elements, &contract.Unknown{Sym: "?", Span: contract.Span{Line: 1, Start: 8, End: 9}})
	first := Resolve(st)
	want := make([]contract.PitchCode, 0, 3)
	for i := 0; i < 3; i++ {
		want = append(want, noteAt(t, st, i).Pitch)
	}
	second := Resolve(st)
	if first != second {
		t.Fatalf("dominant drifted: %v then %v", first, second)
	}
	for i := 0; i < 3; i++ {
		if got := noteAt(t, st, i).Pitch; got != want[i] {
			t.Fatalf("note %d drifted: %v then %v", i, want[i], got)
		}
	}
	if _, ok := st.Elements[3].(*contract.Unknown); !ok {
		t.Fatalf("unknown element replaced: %T", st.Elements[3])
	}
}
