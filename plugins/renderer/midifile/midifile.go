// Package midifile 将类型化乐谱渲染为标准 MIDI 文件（SMF type 0）。
// 四分音符 960 tick，精确时值 × 3840 为事件长度；音高按大调音级
// 半音表映射到中央 C=60，变音与八度直接叠加。
// 约束：
// 1) 单音轨单通道；休止只推进游标，不产生事件；
// 2) 跨拍延长线合并为加长的单个音（无重复 NoteOn）；
// 3) tick 位置按有理数游标取整，不累积误差；
// 4) 超出 0..127 的音高丢弃为静默。
package midifile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"stavetext/pkg/contract"
)

// 整音符对应的 tick 数（4 × 960）。
const wholeTicks = 3840

const (
	defaultTempo    = 120.0
	defaultVelocity = 100
)

// Options: 渲染器配置（JSON，未知键拒绝）。
type Options struct {
	// Tempo: 缺省速度（BPM）；手稿 tempo 指令优先。0 用 120。
	Tempo float64 `json:"tempo"`
	// Velocity: 力度 1..127；0 用 100。
	Velocity int `json:"velocity"`
}

type Renderer struct {
	tempo    float64
	velocity uint8
}

var _ contract.Renderer = (*Renderer)(nil)

func New(o Options) (*Renderer, error) {
	t := o.Tempo
	if t == 0 {
		t = defaultTempo
	}
	if t < 0 {
		return nil, fmt.Errorf("midifile: tempo %v out of range", t)
	}
	v := o.Velocity
	if v == 0 {
		v = defaultVelocity
	}
	if v < 1 || v > 127 {
		return nil, fmt.Errorf("midifile: velocity %d out of range", v)
	}
	return &Renderer{tempo: t, velocity: uint8(v)}, nil
}

func (r *Renderer) Ext() string { return ".mid" }

// noteEvt: 合并延长线后的一个发声区间。
type noteEvt struct {
	key      uint8
	on, off  *big.Rat
	syllable string
}

func (r *Renderer) Render(ctx context.Context, score *contract.Score) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	evts := collect(score)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(960)
	var tr smf.Track
	if score.Title != "" {
		tr.Add(0, smf.MetaTrackSequenceName(score.Title))
	}
	tr.Add(0, smf.MetaTempo(r.resolveTempo(score)))
	tr.Add(0, smf.MetaMeter(4, 4))

	cur := int64(0)
	for _, e := range evts {
		on := ticksAt(e.on)
		if e.syllable != "" {
			tr.Add(uint32(on-cur), smf.MetaLyric(e.syllable))
			cur = on
		}
		tr.Add(uint32(on-cur), midi.NoteOn(0, e.key, r.velocity))
		cur = on
		off := ticksAt(e.off)
		tr.Add(uint32(off-cur), midi.NoteOff(0, e.key))
		cur = off
	}
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("midifile: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("midifile: %w", err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}

func (r *Renderer) resolveTempo(score *contract.Score) float64 {
	if t, ok := score.Directives["tempo"]; ok {
		if bpm, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && bpm > 0 {
			return bpm
		}
	}
	return r.tempo
}

// collect 展平全部谱表，合并延长线，丢弃休止与越界音高。
func collect(score *contract.Score) []noteEvt {
	var evts []noteEvt
	pos := new(big.Rat)
	for _, sr := range score.Staves {
		for _, it := range sr.Items {
			bt, ok := it.(*contract.Beat)
			if !ok {
				continue
			}
			for i := range bt.Elements {
				be := &bt.Elements[i]
				if be.Exact == nil {
					continue
				}
				end := new(big.Rat).Add(pos, be.Exact)
				n, isNote := be.El.(*contract.Note)
				if !isNote {
					pos = end
					continue
				}
				key, ok := noteKey(n.Pitch, n.Octave)
				if !ok {
					pos = end
					continue
				}
				if bt.TiedToPrevious && i == 0 && len(evts) > 0 &&
					evts[len(evts)-1].key == key && evts[len(evts)-1].off.Cmp(pos) == 0 {
					evts[len(evts)-1].off = end
				} else {
					evts = append(evts, noteEvt{key: key, on: pos, off: end, syllable: n.Syllable})
				}
				pos = end
			}
		}
	}
	return evts
}

// 大调音级 → 距主音半音数。
var majorSemis = [8]int{0, 0, 2, 4, 5, 7, 9, 11}

// noteKey 将音高映射到 MIDI key（中央 C=60 为八度 0 的一级）。
func noteKey(p contract.PitchCode, octave int) (uint8, bool) {
	if !p.Valid() {
		return 0, false
	}
	k := 60 + majorSemis[p.Degree] + p.Alter + 12*octave
	if k < 0 || k > 127 {
		return 0, false
	}
	return uint8(k), true
}

// ticksAt 将有理数位置（整音符为 1）换算为 tick，四舍五入。
func ticksAt(pos *big.Rat) int64 {
	n := new(big.Rat).Mul(pos, big.NewRat(wholeTicks, 1))
	num, den := n.Num().Int64(), n.Denom().Int64()
	return (2*num + den) / (2 * den)
}
