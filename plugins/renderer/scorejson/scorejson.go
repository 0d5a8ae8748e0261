// Package scorejson 将类型化乐谱渲染为规范化 JSON，供机器消费。
// 约束：
// 1) snake_case 键；字段顺序固定，map 键排序，输出可字节级复现；
// 2) 有理数一律 {num, den}，不转浮点；
// 3) 封闭和类型以 "type" 判别字段展开（beat|barline|slur|group|breath|unknown）。
package scorejson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"stavetext/pkg/contract"
)

// Options: 渲染器配置（JSON，未知键拒绝）。
type Options struct {
	// Compact: 单行输出；默认两空格缩进。
	Compact bool `json:"compact"`
}

type Renderer struct {
	compact bool
}

var _ contract.Renderer = (*Renderer)(nil)

func New(o Options) (*Renderer, error) {
	return &Renderer{compact: o.Compact}, nil
}

func (r *Renderer) Ext() string { return ".json" }

type ratJSON struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

type spanJSON struct {
	Line  int `json:"line"`
	Start int `json:"start"`
	End   int `json:"end"`
}

type noteJSON struct {
	Type         string   `json:"type"`
	Sym          string   `json:"sym"`
	System       string   `json:"system"`
	Degree       int      `json:"degree"`
	Alter        int      `json:"alter"`
	Octave       int      `json:"octave"`
	Syllable     string   `json:"syllable,omitempty"`
	InSlur       bool     `json:"in_slur,omitempty"`
	InBeatGroup  bool     `json:"in_beat_group,omitempty"`
	Subdivisions int      `json:"subdivisions"`
	Display      *ratJSON `json:"display"`
	Exact        *ratJSON `json:"exact"`
	Span         spanJSON `json:"span"`
}

type restJSON struct {
	Type         string   `json:"type"`
	Subdivisions int      `json:"subdivisions"`
	Display      *ratJSON `json:"display"`
	Exact        *ratJSON `json:"exact"`
	Span         spanJSON `json:"span"`
}

type beatJSON struct {
	Type           string   `json:"type"`
	Divisions      int      `json:"divisions"`
	Tuplet         *ratJSON `json:"tuplet,omitempty"`
	TiedToPrevious bool     `json:"tied_to_previous,omitempty"`
	Elements       []any    `json:"elements"`
}

type markerJSON struct {
	Type  string   `json:"type"`
	Style string   `json:"style,omitempty"`
	Open  *bool    `json:"open,omitempty"`
	Sym   string   `json:"sym,omitempty"`
	Span  spanJSON `json:"span"`
}

type staveJSON struct {
	System string `json:"system"`
	Items  []any  `json:"items"`
}

type scoreJSON struct {
	FileID     string            `json:"file_id"`
	Title      string            `json:"title,omitempty"`
	Directives map[string]string `json:"directives,omitempty"`
	Staves     []staveJSON       `json:"staves"`
}

func (r *Renderer) Render(ctx context.Context, score *contract.Score) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := scoreDoc(score)
	var (
		data []byte
		err  error
	)
	if r.compact {
		data, err = json.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("scorejson: %w", err)
	}
	data = append(data, '\n')
	return bytes.NewReader(data), nil
}

func scoreDoc(score *contract.Score) scoreJSON {
	doc := scoreJSON{
		FileID:     string(score.FileID),
		Title:      score.Title,
		Directives: score.Directives,
		Staves:     make([]staveJSON, 0, len(score.Staves)),
	}
	for _, sr := range score.Staves {
		sv := staveJSON{System: sr.System.String(), Items: make([]any, 0, len(sr.Items))}
		for _, it := range sr.Items {
			switch v := it.(type) {
			case *contract.Beat:
				sv.Items = append(sv.Items, beatDoc(v))
			case contract.Marker:
				sv.Items = append(sv.Items, markerDoc(v.El))
			}
		}
		doc.Staves = append(doc.Staves, sv)
	}
	return doc
}

func beatDoc(bt *contract.Beat) beatJSON {
	b := beatJSON{
		Type:           "beat",
		Divisions:      bt.Divisions,
		TiedToPrevious: bt.TiedToPrevious,
		Elements:       make([]any, 0, len(bt.Elements)),
	}
	if bt.IsTuplet {
		b.Tuplet = &ratJSON{Num: int64(bt.TupletNum), Den: int64(bt.TupletDen)}
	}
	for _, be := range bt.Elements {
		switch el := be.El.(type) {
		case *contract.Note:
			b.Elements = append(b.Elements, noteJSON{
				Type:         "note",
				Sym:          el.Sym,
				System:       el.System.String(),
				Degree:       el.Pitch.Degree,
				Alter:        el.Pitch.Alter,
				Octave:       el.Octave,
				Syllable:     el.Syllable,
				InSlur:       el.InSlur,
				InBeatGroup:  el.InBeatGroup,
				Subdivisions: be.Subdivisions,
				Display:      rat(be.Display),
				Exact:        rat(be.Exact),
				Span:         span(el.Span),
			})
		case *contract.Rest:
			b.Elements = append(b.Elements, restJSON{
				Type:         "rest",
				Subdivisions: be.Subdivisions,
				Display:      rat(be.Display),
				Exact:        rat(be.Exact),
				Span:         span(el.Span),
			})
		}
	}
	return b
}

func markerDoc(el contract.Element) markerJSON {
	switch v := el.(type) {
	case *contract.Barline:
		return markerJSON{Type: "barline", Style: v.Style.String(), Span: span(v.Span)}
	case *contract.SlurBound:
		return markerJSON{Type: "slur", Open: &v.Open, Span: span(v.Span)}
	case *contract.GroupBound:
		return markerJSON{Type: "group", Open: &v.Open, Span: span(v.Span)}
	case *contract.Breath:
		return markerJSON{Type: "breath", Span: span(v.Span)}
	case *contract.Unknown:
		return markerJSON{Type: "unknown", Sym: v.Sym, Span: span(v.Span)}
	default:
		return markerJSON{Type: "unknown", Span: span(el.Pos())}
	}
}

func rat(r *big.Rat) *ratJSON {
	if r == nil {
		return nil
	}
	return &ratJSON{Num: r.Num().Int64(), Den: r.Denom().Int64()}
}

func span(s contract.Span) spanJSON {
	return spanJSON{Line: s.Line, Start: s.Start, End: s.End}
}
