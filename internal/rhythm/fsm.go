package rhythm

import (
	"math/big"

	"stavetext/pkg/contract"
)

// 节拍归组状态机。两个状态：
//   Idle   没有开拍；音符或延长线开新拍；
//   InBeat 有开拍；空白与小节线收拍，换气收拍并断链。
// 约束：
// 1) 拍内延长线延长最后一个发声；起拍延长线有延续链则产出
//    延续发声并置 TiedToPrevious，无链则合成 Rest；
// 2) 延续链跨空白与小节线存活，仅换气断链；
// 3) 零细分节拍丢弃；本阶段不报错；
// 4) 边界元素与未知符号按出现顺序透传。

// IsTuplet 报告细分数是否构成连音（非 2 的幂）。
func IsTuplet(divisions int) bool {
	return divisions > 0 && divisions&(divisions-1) != 0
}

// TupletBase 返回严格小于 divisions 的最大 2 的幂。
// 仅对连音细分数（>=3）有意义。
func TupletBase(divisions int) int {
	p := 1
	for p*2 < divisions {
		p *= 2
	}
	return p
}

type fsm struct {
	items []contract.Item
	open  bool
	cur   []contract.BeatElement
	tied  bool
	chain *contract.Note
}

// Group 将谱表元素归组为节拍序列。输入需已完成系统判定与空间映射。
func Group(st *contract.Stave) contract.StaveResult {
	f := &fsm{}
	for _, el := range st.Elements {
		switch e := el.(type) {
		case *contract.Note:
			f.note(e)
		case *contract.Dash:
			f.dash(e)
		case *contract.Rest:
			// 上游不产出显式休止；防御处理为发声单元。
			f.begin()
			f.cur = append(f.cur, contract.BeatElement{El: e, Subdivisions: 1})
			f.chain = nil
		case *contract.Space:
			f.flush()
		case *contract.Barline:
			f.flush()
			f.items = append(f.items, contract.Marker{El: e})
		case *contract.Breath:
			f.flush()
			f.chain = nil
			f.items = append(f.items, contract.Marker{El: e})
		case *contract.SlurBound:
			f.items = append(f.items, contract.Marker{El: e})
		case *contract.GroupBound:
			f.items = append(f.items, contract.Marker{El: e})
		case *contract.Unknown:
			f.items = append(f.items, contract.Marker{El: e})
		}
	}
	f.flush()
	return contract.StaveResult{System: st.System, Items: f.items}
}

func (f *fsm) begin() {
	if f.open {
		return
	}
	f.open = true
	f.cur = nil
	f.tied = false
}

func (f *fsm) note(n *contract.Note) {
	f.begin()
	f.cur = append(f.cur, contract.BeatElement{El: n, Subdivisions: 1})
	f.chain = n
}

func (f *fsm) dash(d *contract.Dash) {
	if f.open {
		f.cur[len(f.cur)-1].Subdivisions++
		return
	}
	f.begin()
	if f.chain != nil {
		cont := &contract.Note{
			Sym:     f.chain.Sym,
			System:  f.chain.System,
			Pitch:   f.chain.Pitch,
			Octave:  f.chain.Octave,
			Span:    d.Span,
			Spatial: d.Spatial,
		}
		f.cur = append(f.cur, contract.BeatElement{El: cont, Subdivisions: 1})
		f.tied = true
		f.chain = cont
		return
	}
	f.cur = append(f.cur, contract.BeatElement{El: &contract.Rest{Span: d.Span, Spatial: d.Spatial}, Subdivisions: 1})
}

// flush 收拍：计算细分、连音比与时值，追加到输出。
func (f *fsm) flush() {
	if !f.open {
		return
	}
	els := f.cur
	tied := f.tied
	f.open, f.cur, f.tied = false, nil, false

	d := 0
	for i := range els {
		d += els[i].Subdivisions
	}
	if d == 0 || len(els) == 0 {
		return
	}

	b := &contract.Beat{Divisions: d, Elements: els, TiedToPrevious: tied}
	if IsTuplet(d) {
		b.IsTuplet = true
		b.TupletNum, b.TupletDen = d, TupletBase(d)
	}
	for i := range b.Elements {
		sub := int64(b.Elements[i].Subdivisions)
		b.Elements[i].Exact = big.NewRat(sub, int64(4*d))
		if b.IsTuplet {
			b.Elements[i].Display = big.NewRat(sub, int64(4*b.TupletDen))
		} else {
			b.Elements[i].Display = big.NewRat(sub, int64(4*d))
		}
	}
	f.items = append(f.items, b)
}
