package notation

import (
	"stavetext/internal/catalog"
	"stavetext/pkg/contract"
)

// 两遍系统判定：
// 第一遍为每个音符做临时指派（独占符号即为终判），
// 汇总后确定主导系统，第二遍仅对歧义符号按主导系统重查。
// 永不报错：查不到的符号保持原样流过。

// Resolve 原地改写 st 中音符的 System/Pitch，并写入 st.System。
// 返回主导系统（无音符的谱表按 Number 处理）。
func Resolve(st *contract.Stave) contract.NotationSystem {
	notes := make([]*contract.Note, 0, len(st.Elements))
	for _, el := range st.Elements {
		if n, ok := el.(*contract.Note); ok {
			notes = append(notes, n)
		}
	}

	total := make(map[contract.NotationSystem]int)
	uniq := make(map[contract.NotationSystem]int)
	for _, n := range notes {
		cands := catalog.Candidates(n.Sym)
		if len(cands) == 0 {
			// 解析器对命不中目录的符号产出 Unknown；此处只作防御。
			continue
		}
		for _, s := range cands {
			total[s]++
		}
		sys, pc, _ := catalog.Provisional(n.Sym)
		n.System, n.Pitch = sys, pc
		if len(cands) == 1 {
			uniq[sys]++
		}
	}

	dom := dominant(notes, total, uniq)

	for _, n := range notes {
		if !catalog.Ambiguous(n.Sym) {
			continue
		}
		if pc, ok := catalog.Lookup(dom, n.Sym); ok {
			n.System, n.Pitch = dom, pc
		}
		// 主导系统表中不存在该符号时维持临时指派。
	}

	st.System = dom
	return dom
}

// dominant 按固定优先级确定主导系统：
// 1) 恰有一个系统拥有独占符号 → 该系统；
// 2) 多个系统拥有独占符号 → 独占出现次数最多者，
//    并列时取最早出现的独占符号所属系统；
// 3) 无独占符号 → 候选计数最多者，并列向第一个音符的系统倾斜。
func dominant(notes []*contract.Note, total, uniq map[contract.NotationSystem]int) contract.NotationSystem {
	if len(notes) == 0 {
		return contract.Number
	}

	var uniqOwners []contract.NotationSystem
	for _, s := range catalog.Priority {
		if uniq[s] > 0 {
			uniqOwners = append(uniqOwners, s)
		}
	}
	if len(uniqOwners) == 1 {
		return uniqOwners[0]
	}
	if len(uniqOwners) > 1 {
		best := 0
		for _, s := range uniqOwners {
			if uniq[s] > best {
				best = uniq[s]
			}
		}
		leaders := uniqOwners[:0:0]
		for _, s := range uniqOwners {
			if uniq[s] == best {
				leaders = append(leaders, s)
			}
		}
		if len(leaders) == 1 {
			return leaders[0]
		}
		for _, n := range notes {
			s, ok := catalog.Unique(n.Sym)
			if !ok {
				continue
			}
			for _, l := range leaders {
				if l == s {
					return s
				}
			}
		}
		return leaders[0]
	}

	best := 0
	for _, s := range catalog.Priority {
		if total[s] > best {
			best = total[s]
		}
	}
	if best == 0 {
		return contract.Number
	}
	var leaders []contract.NotationSystem
	for _, s := range catalog.Priority {
		if total[s] == best {
			leaders = append(leaders, s)
		}
	}
	if len(leaders) == 1 {
		return leaders[0]
	}
	first := notes[0].System
	for _, l := range leaders {
		if l == first {
			return first
		}
	}
	return leaders[0]
}
