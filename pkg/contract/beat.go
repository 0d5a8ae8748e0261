package contract

import "math/big"

// QuarterDur 返回一拍的基准时值 1/4（每次新建，big.Rat 可变）。
func QuarterDur() *big.Rat { return big.NewRat(1, 4) }

// BeatElement: 节拍内的一个发声单元。
// El 为 *Note 或 *Rest；Subdivisions 为占用的细分数（>=1）。
// Display 为记谱时值（连音内为 subdivisions × ((1/4)/p)），
// Exact 为精确时值（subdivisions/divisions × 1/4）；二者都保留。
type BeatElement struct {
	El           Element
	Subdivisions int
	Display      *big.Rat
	Exact        *big.Rat
}

// Beat: 一个四分音符时值的节拍。
// 约束：
// 1) Divisions == ΣElements[i].Subdivisions，且 >=1；
// 2) IsTuplet ⇔ Divisions 不是 2 的幂；
// 3) IsTuplet 时 TupletNum=Divisions、TupletDen=小于 Divisions 的最大 2 的幂；
// 4) ΣExact == 1/4（精确有理数）。
type Beat struct {
	Divisions int
	Elements  []BeatElement
	IsTuplet  bool
	TupletNum int
	TupletDen int
	// TiedToPrevious: 本拍第一个发声延续上一拍最后的音
	//（例如小节线后的起拍延长线）。
	TiedToPrevious bool
}

// Item: 节奏阶段输出序列的一项：*Beat 或透传 Marker。
type Item interface {
	item()
}

// Marker: 节拍之间透传的元素（小节线、连句/拍组边界、换气、未知符号）。
type Marker struct {
	El Element
}

func (*Beat) item()  {}
func (Marker) item() {}

// StaveResult: 单个谱表的节奏归组结果。
type StaveResult struct {
	System NotationSystem
	Items  []Item
}

// Score: 整篇手稿的最终类型化输出，渲染器的唯一输入。
type Score struct {
	FileID     FileID
	Title      string
	Directives map[string]string
	Staves     []StaveResult
}
