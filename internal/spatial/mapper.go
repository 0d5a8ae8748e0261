package spatial

import (
	"sort"
	"strings"

	"stavetext/pkg/contract"
)

// 空间映射：把上下注记行与歌词行落到内容行元素上。
// 约束：
// 1) 下划线连续段（≥2 格）在上方为连句、在下方为拍组；
//    列区间任意交叠即覆盖；同轴多段先并集再应用；
// 2) 孤立 . / : 为八度点号（上 +1/+2，下 -1/-2），两阶段指派：
//    先取正对列的音符，再取最近的未占用音符，剩余点号丢弃；
// 3) 下方非注记行视为歌词行；
// 4) 注记缺陷一律跳过，本阶段不报错。

// Summary: 单个谱表的映射统计，供诊断计数。
type Summary struct {
	Slurs          int
	Groups         int
	Markers        int
	DroppedMarkers int
	Syllables      int
}

type marker struct {
	col   int
	delta int
}

type colSpan struct {
	line       int
	start, end int
}

// Map 原地改写谱表元素并在区间边界物化 SlurBound/GroupBound。
func Map(st *contract.Stave) Summary {
	var sum Summary

	var slurs, groups []colSpan
	var marks []marker

	for _, tl := range st.Above {
		s, m := scanAnnotation(tl, true)
		slurs = append(slurs, s...)
		marks = append(marks, m...)
	}
	var lyricLines []contract.TextLine
	for _, tl := range st.Below {
		if !LowerAnnotation(tl.Text) {
			if strings.TrimSpace(tl.Text) != "" {
				lyricLines = append(lyricLines, tl)
			}
			continue
		}
		s, m := scanAnnotation(tl, false)
		groups = append(groups, s...)
		marks = append(marks, m...)
	}

	slurs = mergeSpans(slurs)
	groups = mergeSpans(groups)
	sum.Slurs, sum.Groups = len(slurs), len(groups)

	applySpans(st, slurs, true)
	applySpans(st, groups, false)

	sum.Markers, sum.DroppedMarkers = assignMarkers(st, marks)
	sum.Syllables = assignSyllables(st, lyricLines)
	return sum
}

// scanAnnotation 提取一行注记中的下划线区间与八度点号。
func scanAnnotation(tl contract.TextLine, upper bool) ([]colSpan, []marker) {
	step := 1
	if !upper {
		step = -1
	}
	var spans []colSpan
	var marks []marker
	runStart, runEnd, runLen := 0, 0, 0
	flush := func() {
		if runLen >= 2 {
			spans = append(spans, colSpan{line: tl.Line, start: runStart, end: runEnd})
		}
		runLen = 0
	}
	for _, c := range Cells(tl.Text) {
		if c.Text == "_" {
			if runLen == 0 {
				runStart = c.Col
			}
			runEnd = c.Col + c.Width
			runLen++
			continue
		}
		flush()
		switch c.Text {
		case ".":
			marks = append(marks, marker{col: c.Col, delta: step})
		case ":":
			marks = append(marks, marker{col: c.Col, delta: 2 * step})
		}
		// 波浪号等其他字符只占列，不产生输出。
	}
	flush()
	return spans, marks
}

// mergeSpans 合并交叠或相邻的同轴区间。
func mergeSpans(in []colSpan) []colSpan {
	if len(in) <= 1 {
		return in
	}
	sort.Slice(in, func(i, j int) bool {
		if in[i].start != in[j].start {
			return in[i].start < in[j].start
		}
		return in[i].end < in[j].end
	})
	out := []colSpan{in[0]}
	for _, sp := range in[1:] {
		last := &out[len(out)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

type insertion struct {
	idx int
	el  contract.Element
}

// applySpans 置位区间覆盖的元素标志并在首尾物化边界元素。
func applySpans(st *contract.Stave, spans []colSpan, slur bool) {
	if len(spans) == 0 {
		return
	}
	var ins []insertion
	for _, sp := range spans {
		first, last := -1, -1
		for i, el := range st.Elements {
			p := el.Pos()
			if p.Start < sp.end && sp.start < p.End {
				if first < 0 {
					first = i
				}
				last = i
			}
		}
		if first < 0 {
			continue
		}
		for i := first; i <= last; i++ {
			markElement(st.Elements[i], slur)
		}
		head := contract.Span{Line: sp.line, Start: sp.start, End: sp.start + 1}
		tail := contract.Span{Line: sp.line, Start: sp.end - 1, End: sp.end}
		if slur {
			ins = append(ins,
				insertion{first, &contract.SlurBound{Open: true, Span: head}},
				insertion{last + 1, &contract.SlurBound{Open: false, Span: tail}})
		} else {
			ins = append(ins,
				insertion{first, &contract.GroupBound{Open: true, Span: head}},
				insertion{last + 1, &contract.GroupBound{Open: false, Span: tail}})
		}
	}
	if len(ins) == 0 {
		return
	}
	sort.SliceStable(ins, func(i, j int) bool { return ins[i].idx < ins[j].idx })
	out := make([]contract.Element, 0, len(st.Elements)+len(ins))
	k := 0
	for i := 0; i <= len(st.Elements); i++ {
		for k < len(ins) && ins[k].idx == i {
			out = append(out, ins[k].el)
			k++
		}
		if i < len(st.Elements) {
			out = append(out, st.Elements[i])
		}
	}
	st.Elements = out
}

func markElement(el contract.Element, slur bool) {
	set := func(sp *contract.Spatial) {
		if slur {
			sp.InSlur = true
		} else {
			sp.InBeatGroup = true
		}
	}
	switch e := el.(type) {
	case *contract.Note:
		set(&e.Spatial)
	case *contract.Rest:
		set(&e.Spatial)
	case *contract.Dash:
		set(&e.Spatial)
	}
}

// assignMarkers 两阶段指派八度点号，返回（已指派数, 丢弃数）。
func assignMarkers(st *contract.Stave, marks []marker) (applied, dropped int) {
	if len(marks) == 0 {
		return 0, 0
	}
	var notes []*contract.Note
	for _, el := range st.Elements {
		if n, ok := el.(*contract.Note); ok {
			notes = append(notes, n)
		}
	}
	if len(notes) == 0 {
		return 0, len(marks)
	}
	taken := make([]bool, len(notes))
	used := make([]bool, len(marks))

	for i, m := range marks {
		for j, n := range notes {
			if taken[j] {
				continue
			}
			if n.Span.Start <= m.col && m.col < n.Span.End {
				n.Octave = m.delta
				taken[j], used[i] = true, true
				applied++
				break
			}
		}
	}
	for i, m := range marks {
		if used[i] {
			continue
		}
		best, bestDist := -1, int(^uint(0)>>1)
		for j, n := range notes {
			if taken[j] {
				continue
			}
			// 平距取左侧音符。
			if d := colDist(m.col, n.Span); d < bestDist {
				best, bestDist = j, d
			}
		}
		if best < 0 {
			dropped++
			continue
		}
		notes[best].Octave = m.delta
		taken[best] = true
		applied++
	}
	return applied, dropped
}

func colDist(col int, sp contract.Span) int {
	if col < sp.Start {
		return sp.Start - col
	}
	if col >= sp.End {
		return col - (sp.End - 1)
	}
	return 0
}

// assignSyllables 将歌词音节按序落到音符上。
// 连句内只有首音符取音节（melisma），其余留空；
// 音节多于音符时余量丢弃，少于音符时尾部音符留空。
func assignSyllables(st *contract.Stave, lines []contract.TextLine) int {
	var syls []string
	for _, tl := range lines {
		for _, w := range strings.Fields(tl.Text) {
			if punctWord(w) {
				continue
			}
			syls = append(syls, splitSyllables(w)...)
		}
	}
	if len(syls) == 0 {
		return 0
	}
	idx := 0
	inSlur, slurFilled := false, false
	for _, el := range st.Elements {
		switch e := el.(type) {
		case *contract.SlurBound:
			inSlur = e.Open
			slurFilled = false
		case *contract.Note:
			if inSlur && slurFilled {
				continue
			}
			if idx >= len(syls) {
				return idx
			}
			e.Syllable = syls[idx]
			idx++
			if inSlur {
				slurFilled = true
			}
		}
	}
	return idx
}

// punctWord 报告一个词是否为混入歌词行的非歌词记号。
func punctWord(w string) bool {
	if strings.HasPrefix(w, "|") || strings.HasSuffix(w, "|") {
		return true
	}
	switch w {
	case "(", ")", "[", "]":
		return true
	}
	for _, r := range w {
		switch r {
		case '.', ':', ',', '\'', '_', '-':
		default:
			return false
		}
	}
	return true
}

// splitSyllables 按连字符切分歌词词，连字符保留在前段尾部。
func splitSyllables(w string) []string {
	if !strings.Contains(w, "-") {
		return []string{w}
	}
	parts := strings.Split(w, "-")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i < len(parts)-1 {
			out = append(out, p+"-")
		} else {
			out = append(out, p)
		}
	}
	return out
}
