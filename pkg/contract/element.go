package contract

// Element: 内容行的最小语法单元（封闭和类型）。
// 约束：
// 1) 变体集合封闭，消费方按类型穷举；
// 2) 切片中保存指针变体，后续阶段原地改写（音高、上下文标志）；
// 3) 每个变体都携带源位置 Span。
type Element interface {
	Pos() Span
	element()
}

// Spatial: 空间映射阶段写入的上下文标志。
// InSlur 来自上方下划线区间，InBeatGroup 来自下方下划线区间。
type Spatial struct {
	InSlur      bool
	InBeatGroup bool
}

// Note: 音符。Sym 为原始符号（含变音后缀）。
// System/Pitch 由 Resolver 写入；Octave 由空间映射写入（0 为中央八度）；
// Syllable 由歌词行按序指派（可为空）。
type Note struct {
	Sym      string
	System   NotationSystem
	Pitch    PitchCode
	Octave   int
	Syllable string
	Span     Span
	Spatial
}

// Rest: 休止。手稿中没有显式休止符号；Rest 由节奏阶段在
// 无可延续音的起拍延长线处合成，Span 指向该延长线。
type Rest struct {
	Span Span
	Spatial
}

// Dash: 延长线（节奏占位）。一个 '-' 一个元素。
type Dash struct {
	Span Span
	Spatial
}

// BarStyle: 小节线样式。
type BarStyle uint8

const (
	BarSingle      BarStyle = iota // |
	BarDouble                      // ||
	BarFinal                       // |]
	BarRepeatStart                 // |:
	BarRepeatEnd                   // :|
)

func (b BarStyle) String() string {
	switch b {
	case BarDouble:
		return "||"
	case BarFinal:
		return "|]"
	case BarRepeatStart:
		return "|:"
	case BarRepeatEnd:
		return ":|"
	default:
		return "|"
	}
}

// Barline: 小节线。节拍定界并透传到输出。
type Barline struct {
	Style BarStyle
	Span  Span
}

// SlurBound: 连句边界（空间映射物化，Open=true 为起点）。
type SlurBound struct {
	Open bool
	Span Span
}

// GroupBound: 拍组边界（空间映射物化，Open=true 为起点）。
type GroupBound struct {
	Open bool
	Span Span
}

// Breath: 换气记号（'）。终止延续链并透传到输出。
type Breath struct {
	Span Span
}

// Space: 连续空白（节拍分隔）。Width 为显示单元格数。
type Space struct {
	Width int
	Span  Span
}

// Unknown: 无法识别的符号。保留原文并原样透传，零时值。
type Unknown struct {
	Sym  string
	Span Span
}

func (n *Note) Pos() Span       { return n.Span }
func (r *Rest) Pos() Span       { return r.Span }
func (d *Dash) Pos() Span       { return d.Span }
func (b *Barline) Pos() Span    { return b.Span }
func (s *SlurBound) Pos() Span  { return s.Span }
func (g *GroupBound) Pos() Span { return g.Span }
func (b *Breath) Pos() Span     { return b.Span }
func (s *Space) Pos() Span      { return s.Span }
func (u *Unknown) Pos() Span    { return u.Span }

func (*Note) element()       {}
func (*Rest) element()       {}
func (*Dash) element()       {}
func (*Barline) element()    {}
func (*SlurBound) element()  {}
func (*GroupBound) element() {}
func (*Breath) element()     {}
func (*Space) element()      {}
func (*Unknown) element()    {}
