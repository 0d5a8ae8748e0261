package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"stavetext/internal/diag"
	"stavetext/internal/notation"
	"stavetext/internal/rhythm"
	"stavetext/internal/spatial"
	"stavetext/pkg/contract"
)

// - 单点并发：仅此层管理并发；原子组件均为同步、无内部并发。
// - 谱表归属：每个 Stave 由单个 worker 独占，原地改写不共享。
// - 顺序保持：结果按文档内谱表顺序落位，输出与输入顺序一致。
// - 首错取消：文件内首错 cancel 整体；文件间相互独立，非致命错误
//   （解析/渲染）记录后继续后续文件，io/取消类错误中止遍历。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader   contract.Reader
	Parser   contract.Parser
	Renderer contract.Renderer
	Writer   contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// 输入根；输出目录由 Writer 的 options 决定。
	Inputs      []string
	Concurrency int
	// Renderer: 渲染器注册名（仅用于日志/终端展示）。
	Renderer string
	// Metrics: 可选指标接收器；nil 时使用 no-op。
	Metrics diag.Metrics
}

// Run 执行完整流水线：Reader → Parser → (Resolve → Map → Group)×谱表 → Renderer → Writer。
// 返回首个失败；全部成功时为 nil。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) error {
	if err := sanity(comp, set); err != nil {
		return fmt.Errorf("sanity: %w", err)
	}
	met := set.Metrics
	if met == nil {
		met = diag.NopMetrics{}
	}
	n := set.Concurrency
	if n < 1 {
		n = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var firstErr error
	record := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	files := 0
	rtimer := (*diag.Timer)(nil)
	if logger != nil {
		rtimer = logger.Start(diag.StageRead, "iterate")
	}
	iterErr := comp.Reader.Iterate(ctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		if err := ctx.Err(); err != nil {
			return err
		}
		files++
		err := processFile(ctx, comp, set, logger, met, n, fid, rc)
		if err == nil {
			return nil
		}
		record(err)
		if code := diag.Classify(err); code == diag.CodeIO || code == diag.CodeCanceled {
			// 致命：中止遍历
			return err
		}
		// 文件级错误：记录后继续独立文件
		return nil
	})
	if iterErr != nil {
		if firstErr == nil {
			// Reader 自身错误（非 yield 透传）
			werr := diag.AtStage(diag.StageRead, iterErr)
			if logger != nil {
				logger.Error(diag.StageRead, diag.Classify(werr), "iterate failed", nil)
			}
			met.IncError(diag.Classify(werr))
			record(werr)
		}
	} else if rtimer != nil {
		rtimer.Finish("iterate", int64(files))
	}
	return firstErr
}

// processFile 处理单个手稿：解析、逐谱表加工、渲染、落盘。
func processFile(ctx context.Context, comp Components, set Settings, logger *diag.Logger, met diag.Metrics, concurrency int, fid contract.FileID, rc io.ReadCloser) error {
	fileStart := time.Now()
	ok := false
	staves := 0
	beats := 0
	defer func() {
		if t := diag.GetTerminal(); t != nil {
			t.FileFinish(ok, staves, beats, time.Since(fileStart))
		}
	}()

	// 解析
	ptimer := (*diag.Timer)(nil)
	if logger != nil {
		ptimer = logger.StartWith(diag.StageParse, "parse", string(fid), 0)
	}
	t0 := time.Now()
	doc, err := comp.Parser.Parse(ctx, fid, rc)
	met.ObserveStageDuration(diag.StageParse, time.Since(t0).Milliseconds())
	if err != nil {
		werr := diag.AtStage(diag.StageParse, err)
		if logger != nil {
			logger.ErrorWith(diag.StageParse, diag.Classify(werr), "parse failed", nil, string(fid), 0)
		}
		met.IncError(diag.Classify(werr))
		return fmt.Errorf("parse %s: %w", fid, werr)
	}
	if ptimer != nil {
		ptimer.Finish("parse", int64(len(doc.Staves)))
	}
	if t := diag.GetTerminal(); t != nil {
		t.FileStart(string(fid), len(doc.Staves))
	}

	// 逐谱表加工（有界并发，结果按序落位）
	gtimer := (*diag.Timer)(nil)
	if logger != nil {
		gtimer = logger.StartWith(diag.StageRhythm, "group staves", string(fid), 0)
	}
	results, nbeats, gerr := processStaves(ctx, doc, concurrency, logger, met)
	if gerr != nil {
		werr := diag.AtStage(diag.StageRhythm, gerr)
		if logger != nil {
			logger.ErrorWith(diag.StageRhythm, diag.Classify(werr), "group failed", nil, string(fid), 0)
		}
		met.IncError(diag.Classify(werr))
		return fmt.Errorf("group %s: %w", fid, werr)
	}
	staves = len(results)
	beats = nbeats
	if gtimer != nil {
		gtimer.Finish("group staves", int64(nbeats))
	}

	score := &contract.Score{
		FileID:     fid,
		Title:      doc.Title,
		Directives: doc.Directives,
		Staves:     results,
	}

	// 渲染
	xtimer := (*diag.Timer)(nil)
	if logger != nil {
		xtimer = logger.StartWithKV(diag.StageRender, "render", string(fid), 0, map[string]string{"renderer": set.Renderer})
	}
	t1 := time.Now()
	out, err := comp.Renderer.Render(ctx, score)
	met.ObserveStageDuration(diag.StageRender, time.Since(t1).Milliseconds())
	if err != nil {
		werr := diag.AtStage(diag.StageRender, err)
		if logger != nil {
			logger.ErrorWith(diag.StageRender, diag.Classify(werr), "render failed", nil, string(fid), 0)
		}
		met.IncError(diag.Classify(werr))
		return fmt.Errorf("render %s: %w", fid, werr)
	}
	if xtimer != nil {
		xtimer.Finish("render", int64(len(results)))
	}

	// 落盘
	id := artifactID(fid, comp.Renderer.Ext())
	wtimer := (*diag.Timer)(nil)
	if logger != nil {
		wtimer = logger.StartWith(diag.StageWrite, "write", string(id), 0)
	}
	t2 := time.Now()
	err = comp.Writer.Write(ctx, id, out)
	met.ObserveStageDuration(diag.StageWrite, time.Since(t2).Milliseconds())
	if err != nil {
		werr := diag.AtStage(diag.StageWrite, err)
		if logger != nil {
			logger.ErrorWith(diag.StageWrite, diag.Classify(werr), "write failed", nil, string(id), 0)
		}
		met.IncError(diag.Classify(werr))
		return fmt.Errorf("write %s: %w", id, werr)
	}
	if wtimer != nil {
		wtimer.Finish("write", 1)
	}
	ok = true
	return nil
}

// processStaves 以有界并发原地加工谱表，返回按原顺序的结果与节拍总数。
// 每个谱表由单个 goroutine 独占改写，结果槽位互不重叠。
func processStaves(ctx context.Context, doc *contract.Document, concurrency int, logger *diag.Logger, met diag.Metrics) ([]contract.StaveResult, int, error) {
	results := make([]contract.StaveResult, len(doc.Staves))
	var done, total int64

	swg := sizedwaitgroup.New(concurrency)
	var addErr error
	for i, st := range doc.Staves {
		if err := swg.AddWithContext(ctx); err != nil {
			addErr = err
			break
		}
		go func(i int, st *contract.Stave) {
			defer swg.Done()
			if logger != nil {
				logger.DebugStart(diag.StageResolve, "stave", string(doc.FileID), i+1, nil)
			}
			t0 := time.Now()
			notation.Resolve(st)
			met.ObserveStageDuration(diag.StageResolve, time.Since(t0).Milliseconds())

			t1 := time.Now()
			spatial.Map(st)
			met.ObserveStageDuration(diag.StageSpan, time.Since(t1).Milliseconds())

			t2 := time.Now()
			res := rhythm.Group(st)
			met.ObserveStageDuration(diag.StageRhythm, time.Since(t2).Milliseconds())

			results[i] = res
			nb := beatCount(res)
			met.IncStave()
			met.IncBeat(nb)
			d := atomic.AddInt64(&done, 1)
			b := atomic.AddInt64(&total, int64(nb))
			if t := diag.GetTerminal(); t != nil {
				t.FileProgress(int(d), int(b), 0)
			}
		}(i, st)
	}
	swg.Wait()
	if addErr != nil {
		return nil, 0, addErr
	}
	return results, int(total), nil
}

// beatCount 统计结果内的节拍项数。
func beatCount(res contract.StaveResult) int {
	n := 0
	for _, it := range res.Items {
		if _, isBeat := it.(*contract.Beat); isBeat {
			n++
		}
	}
	return n
}

// artifactID 以渲染器扩展名替换源扩展名（无扩展名则追加）。
func artifactID(fid contract.FileID, ext string) contract.ArtifactID {
	s := string(fid)
	if e := path.Ext(s); e != "" {
		s = strings.TrimSuffix(s, e)
	}
	return contract.ArtifactID(s + ext)
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Parser == nil || c.Renderer == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if len(s.Inputs) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	return nil
}
