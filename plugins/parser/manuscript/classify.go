package manuscript

import (
	"strings"
	"unicode"

	"stavetext/pkg/contract"
)

// 行分类启发式。
// 约束：
// 1) 含小节线即内容行；
// 2) 否则需 >=2 个空白分隔词且音乐词占比 >= 70%；
// 3) 音乐词的判定走切分器本身：能完整切成音乐元素
//    且不含 Unknown、至少含一个发声或延长线。

func contentLine(text string) bool {
	if strings.ContainsRune(text, '|') {
		return true
	}
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return false
	}
	musical := 0
	for _, f := range fields {
		if musicalToken(f) {
			musical++
		}
	}
	return musical*10 >= len(fields)*7
}

func musicalToken(tok string) bool {
	sound := false
	for _, el := range tokenize(0, tok) {
		switch el.(type) {
		case *contract.Unknown:
			return false
		case *contract.Note, *contract.Dash:
			sound = true
		}
	}
	return sound
}

// directive 解析 "key: value" 形态的头部指令。
// key 为不超过 20 个字母/数字/下划线的标识符。
func directive(text string) (key, value string, ok bool) {
	i := strings.IndexByte(text, ':')
	if i <= 0 {
		return "", "", false
	}
	k := strings.TrimSpace(text[:i])
	if k == "" || len(k) > 20 {
		return "", "", false
	}
	for _, r := range k {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "", "", false
		}
	}
	return k, strings.TrimSpace(text[i+1:]), true
}

func blank(text string) bool { return strings.TrimSpace(text) == "" }
