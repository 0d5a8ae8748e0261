package catalog

import (
	"testing"

	"stavetext/pkg/contract"
)

// TestLookupBasics 测试各系统基本映射
func TestLookupBasics(t *testing.T) {
	cases := []struct {
		sys  contract.NotationSystem
		sym  string
		want contract.PitchCode
	}{
		{contract.Number, "1", contract.PitchCode{Degree: 1}},
		{contract.Number, "7bb", contract.PitchCode{Degree: 7, Alter: -2}},
		{contract.Western, "C", contract.PitchCode{Degree: 1}},
		{contract.Western, "D", contract.PitchCode{Degree: 2}},
		{contract.Western, "F#", contract.PitchCode{Degree: 4, Alter: 1}},
		{contract.Sargam, "S", contract.PitchCode{Degree: 1}},
		{contract.Sargam, "s", contract.PitchCode{Degree: 1}},
		{contract.Sargam, "r", contract.PitchCode{Degree: 2, Alter: -1}},
		{contract.Sargam, "D", contract.PitchCode{Degree: 6}},
		{contract.Sargam, "M", contract.PitchCode{Degree: 4, Alter: 1}},
		{contract.Sargam, "M#", contract.PitchCode{Degree: 4, Alter: 2}},
		{contract.Bhatkhande, Normalize("स"), contract.PitchCode{Degree: 1}},
		{contract.Bhatkhande, Normalize("रे"), contract.PitchCode{Degree: 2}},
		{contract.Bhatkhande, Normalize("द"), contract.PitchCode{Degree: 6, Alter: -1}},
		{contract.Tabla, "dha", contract.PitchCode{Degree: 1}},
		{contract.Tabla, "terekita", contract.PitchCode{Degree: 1}},
	}
	for _, c := range cases {
		got, ok := Lookup(c.sys, c.sym)
		if !ok {
			t.Fatalf("%v lookup %q: not found", c.sys, c.sym)
		}
		if got != c.want {
			t.Fatalf("%v lookup %q = %v, want %v", c.sys, c.sym, got, c.want)
		}
	}
}

// TestLookupAbsent 测试系统内不存在的符号
func TestLookupAbsent(t *testing.T) {
	absent := []struct {
		sys contract.NotationSystem
		sym string
	}{
		{contract.Sargam, "Rb"}, // komal Re 写作 r
		{contract.Sargam, "Db"},
		{contract.Western, "S"},
		{contract.Western, "c"},
		{contract.Number, "8"},
		{contract.Tabla, "d"},
	}
	for _, c := range absent {
		if _, ok := Lookup(c.sys, c.sym); ok {
			t.Fatalf("%v lookup %q: unexpected hit", c.sys, c.sym)
		}
	}
}

// TestAmbiguityDerived 测试歧义由表交集推导
func TestAmbiguityDerived(t *testing.T) {
	for _, sym := range []string{"D", "G", "D#", "G#", "D##", "G##", "Dbb", "Gbb"} {
		if !Ambiguous(sym) {
			t.Fatalf("%q must be ambiguous (western + sargam)", sym)
		}
		cand := Candidates(sym)
		if len(cand) != 2 || cand[0] != contract.Western || cand[1] != contract.Sargam {
			t.Fatalf("%q candidates = %v, want [western sargam]", sym, cand)
		}
	}
	for _, sym := range []string{"1", "5#", "C", "E", "A", "B", "S", "r", "g", "m", "n", "d", "M", "dha", Normalize("स")} {
		if Ambiguous(sym) {
			t.Fatalf("%q must be unambiguous, candidates %v", sym, Candidates(sym))
		}
		if _, ok := Unique(sym); !ok {
			t.Fatalf("%q must have a unique owner", sym)
		}
	}
}

// TestProvisionalPriority 测试临时指派遵循优先序
func TestProvisionalPriority(t *testing.T) {
	sys, pc, ok := Provisional("D")
	if !ok || sys != contract.Western {
		t.Fatalf("provisional D = %v, want western", sys)
	}
	if pc != (contract.PitchCode{Degree: 2}) {
		t.Fatalf("provisional D pitch = %v, want degree 2", pc)
	}
	sys, pc, ok = Provisional("r")
	if !ok || sys != contract.Sargam || pc != (contract.PitchCode{Degree: 2, Alter: -1}) {
		t.Fatalf("provisional r = %v %v", sys, pc)
	}
	if _, _, ok := Provisional("?"); ok {
		t.Fatal("provisional of unknown symbol must miss")
	}
}

// TestMatchGreedy 测试贪婪前缀匹配取最长符号
func TestMatchGreedy(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"S##RG", "S##"},
		{"Sb R", "Sb"},
		{"dha ge", "dha"},
		{"dhin-", "dhin"},
		{"terekita|", "terekita"},
		{"M# ", "M#"},
		{"1b2", "1b"},
		{Normalize("रेb प"), Normalize("रेb")},
	}
	for _, c := range cases {
		got, ok := Match(c.in)
		if !ok {
			t.Fatalf("Match(%q): no hit", c.in)
		}
		if got != c.want {
			t.Fatalf("Match(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if _, ok := Match("xyz"); ok {
		t.Fatal("Match must miss on non-symbols")
	}
	if _, ok := Match(""); ok {
		t.Fatal("Match must miss on empty input")
	}
}

// TestNormalizeDevanagari 测试 NFC 归一让组合元音键稳定
func TestNormalizeDevanagari(t *testing.T) {
	// रे = र (U+0930) + े (U+0947)；NFC 下保持组合序列
	composed := Normalize("रे")
	if _, ok := Lookup(contract.Bhatkhande, composed); !ok {
		t.Fatalf("NFC form %q must hit the table", composed)
	}
}

// TestTableSizes 测试表规模与域约束
func TestTableSizes(t *testing.T) {
	for d := 1; d <= 7; d++ {
		for alt := -2; alt <= 2; alt++ {
			want := contract.PitchCode{Degree: d, Alter: alt}
			if !want.Valid() {
				t.Fatalf("domain: %v", want)
			}
		}
	}
	// Number/Western 为满表：7 音级 × 5 变音
	for _, sys := range []contract.NotationSystem{contract.Number, contract.Western} {
		n := 0
		for _, sym := range symbolsByLen {
			if _, ok := Lookup(sys, sym); ok {
				n++
			}
		}
		if n != 35 {
			t.Fatalf("%v table size = %d, want 35", sys, n)
		}
	}
}
