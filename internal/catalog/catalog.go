package catalog

import (
	"sort"

	"golang.org/x/text/unicode/norm"

	"stavetext/pkg/contract"
)

// 符号目录：每个记谱系统一张 符号→PitchCode 表。
// - 键一律为 NFC 归一后的字符串（Devanagari 组合元音比较稳定）；
// - 歧义由表间交集推导，不手工维护清单；
// - 表为只读：包初始化后不再修改。

// Priority: 固定系统优先序。临时指派取首个命中系统；
// 主导判定的并列截断也按此序。
var Priority = [...]contract.NotationSystem{
	contract.Number,
	contract.Western,
	contract.Sargam,
	contract.Bhatkhande,
	contract.Tabla,
}

var (
	tables map[contract.NotationSystem]map[string]contract.PitchCode
	// owners: 符号 → 定义它的系统（按 Priority 序）。
	owners map[string][]contract.NotationSystem
	// symbolsByLen: 全部符号按字节长度降序，贪婪前缀匹配用。
	symbolsByLen []string
)

func init() {
	tables = map[contract.NotationSystem]map[string]contract.PitchCode{
		contract.Number:     numberTable(),
		contract.Western:    westernTable(),
		contract.Sargam:     sargamTable(),
		contract.Bhatkhande: bhatkhandeTable(),
		contract.Tabla:      tablaTable(),
	}
	owners = make(map[string][]contract.NotationSystem)
	for _, sys := range Priority {
		for sym := range tables[sys] {
			owners[sym] = append(owners[sym], sys)
		}
	}
	symbolsByLen = make([]string, 0, len(owners))
	for sym := range owners {
		symbolsByLen = append(symbolsByLen, sym)
	}
	sort.Slice(symbolsByLen, func(i, j int) bool {
		if len(symbolsByLen[i]) != len(symbolsByLen[j]) {
			return len(symbolsByLen[i]) > len(symbolsByLen[j])
		}
		return symbolsByLen[i] < symbolsByLen[j]
	})
	for sym, os := range owners {
		sort.Slice(os, func(i, j int) bool { return rank(os[i]) < rank(os[j]) })
		owners[sym] = os
	}
}

func rank(sys contract.NotationSystem) int {
	for i, s := range Priority {
		if s == sys {
			return i
		}
	}
	return len(Priority)
}

// Normalize 将输入归一为 NFC，作为一切表查询的前置。
func Normalize(s string) string { return norm.NFC.String(s) }

// Lookup 在指定系统中查符号（sym 须已 NFC 归一）。
func Lookup(sys contract.NotationSystem, sym string) (contract.PitchCode, bool) {
	t, ok := tables[sys]
	if !ok {
		return contract.PitchCode{}, false
	}
	pc, ok := t[sym]
	return pc, ok
}

// Candidates 返回定义该符号的系统（按优先序；返回值只读）。
func Candidates(sym string) []contract.NotationSystem {
	return owners[sym]
}

// Ambiguous 报告符号是否在两个以上系统中有定义。
func Ambiguous(sym string) bool { return len(owners[sym]) >= 2 }

// Unique 当且仅当符号恰好属于一个系统时返回该系统。
func Unique(sym string) (contract.NotationSystem, bool) {
	if os := owners[sym]; len(os) == 1 {
		return os[0], true
	}
	return contract.SystemUnknown, false
}

// Provisional 按优先序返回首个定义该符号的系统及其音高。
func Provisional(sym string) (contract.NotationSystem, contract.PitchCode, bool) {
	os := owners[sym]
	if len(os) == 0 {
		return contract.SystemUnknown, contract.PitchCode{}, false
	}
	pc := tables[os[0]][sym]
	return os[0], pc, true
}

// Match 返回 s 的最长前缀符号（s 须已 NFC 归一）。
// 无命中时返回空串与 false。
func Match(s string) (string, bool) {
	for _, sym := range symbolsByLen {
		if len(sym) > len(s) {
			continue
		}
		if s[:len(sym)] == sym {
			return sym, true
		}
	}
	return "", false
}

// addAccidentals 写入自然音及 #/##/b/bb 四个后缀形。
func addAccidentals(t map[string]contract.PitchCode, base string, degree int) {
	t[base] = contract.PitchCode{Degree: degree}
	t[base+"#"] = contract.PitchCode{Degree: degree, Alter: 1}
	t[base+"##"] = contract.PitchCode{Degree: degree, Alter: 2}
	t[base+"b"] = contract.PitchCode{Degree: degree, Alter: -1}
	t[base+"bb"] = contract.PitchCode{Degree: degree, Alter: -2}
}

func numberTable() map[string]contract.PitchCode {
	t := make(map[string]contract.PitchCode, 35)
	for d := 1; d <= 7; d++ {
		addAccidentals(t, string(rune('0'+d)), d)
	}
	return t
}

func westernTable() map[string]contract.PitchCode {
	t := make(map[string]contract.PitchCode, 35)
	for i, l := range []string{"C", "D", "E", "F", "G", "A", "B"} {
		addAccidentals(t, l, i+1)
	}
	return t
}

// sargamTable: 大小写承载升降（komal 为小写，tivra Ma 为大写 M）。
// 显式后缀形沿用传统写法的不规则集合：已经由大小写表达的变体
// 没有单升/单降后缀（例如 komal Re 写作 r，不存在 Rb）。
func sargamTable() map[string]contract.PitchCode {
	pc := func(d, a int) contract.PitchCode { return contract.PitchCode{Degree: d, Alter: a} }
	return map[string]contract.PitchCode{
		"S": pc(1, 0), "s": pc(1, 0),
		"R": pc(2, 0), "r": pc(2, -1),
		"G": pc(3, 0), "g": pc(3, -1),
		"m": pc(4, 0), "M": pc(4, 1),
		"P": pc(5, 0), "p": pc(5, 0),
		"D": pc(6, 0), "d": pc(6, -1),
		"N": pc(7, 0), "n": pc(7, -1),

		"S#": pc(1, 1), "S##": pc(1, 2), "Sb": pc(1, -1), "Sbb": pc(1, -2),
		"R#": pc(2, 1), "R##": pc(2, 2), "Rbb": pc(2, -2),
		"G#": pc(3, 1), "G##": pc(3, 2), "Gbb": pc(3, -2),
		"mb": pc(4, -1), "mbb": pc(4, -2),
		"M#": pc(4, 2),
		"P#": pc(5, 1), "P##": pc(5, 2), "Pb": pc(5, -1), "Pbb": pc(5, -2),
		"D#": pc(6, 1), "D##": pc(6, 2), "Dbb": pc(6, -2),
		"N#": pc(7, 1), "N##": pc(7, 2), "Nbb": pc(7, -2),
	}
}

func bhatkhandeTable() map[string]contract.PitchCode {
	pc := func(d, a int) contract.PitchCode { return contract.PitchCode{Degree: d, Alter: a} }
	raw := map[string]contract.PitchCode{
		"स": pc(1, 0), "रे": pc(2, 0), "र": pc(2, -1),
		"ग": pc(3, 0), "म": pc(4, 0), "प": pc(5, 0),
		"ध": pc(6, 0), "द": pc(6, -1),
		"नि": pc(7, 0), "न": pc(7, -1),

		"स#": pc(1, 1), "रे#": pc(2, 1), "ग#": pc(3, 1), "म#": pc(4, 1),
		"प#": pc(5, 1), "ध#": pc(6, 1), "नि#": pc(7, 1),
		"सb": pc(1, -1), "रेb": pc(2, -1), "गb": pc(3, -1), "मb": pc(4, -1),
		"पb": pc(5, -1), "धb": pc(6, -1), "निb": pc(7, -1),
	}
	t := make(map[string]contract.PitchCode, len(raw))
	for k, v := range raw {
		t[Normalize(k)] = v
	}
	return t
}

// tablaTable: 鼓点 bol，音级统一记为 1（打击乐不承载音高）。
func tablaTable() map[string]contract.PitchCode {
	one := contract.PitchCode{Degree: 1}
	t := make(map[string]contract.PitchCode, 8)
	for _, bol := range []string{"dha", "dhin", "ta", "ka", "na", "ge", "trka", "terekita"} {
		t[bol] = one
	}
	return t
}
