// Package job coordinates one badge document: it walks the render targets in
// order, gates, captures and composes each of them, reports progress, isolates
// per-target failures and finally renders the assembled document.
package job

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ByLCY/badgepress/compose"
	"github.com/ByLCY/badgepress/layout"
	"github.com/ByLCY/badgepress/logging"
	"github.com/ByLCY/badgepress/raster"
	"github.com/ByLCY/badgepress/renderer"
	"github.com/ByLCY/badgepress/style"
	"github.com/ByLCY/badgepress/surface"
	"github.com/ByLCY/badgepress/validate"
)

// 默认调度参数。
const (
	DefaultBatchSize   = 3
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultBatchDelay  = 50 * time.Millisecond
	DefaultFontTimeout = 3 * time.Second
)

// State is the coordinator lifecycle.
type State int

const (
	Idle State = iota
	Iterating
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Iterating:
		return "iterating"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Target is one badge face to capture. Template may be nil when the job has a
// template of its own.
type Target struct {
	Element  surface.Element
	Side     surface.Side
	Template *layout.Template
}

// ProgressFunc receives progress at the start of every target.
type ProgressFunc func(percent, current, total int)

// FontGate is awaited once before the first capture.
type FontGate interface {
	Ready(ctx context.Context) error
}

// Options configures a Job. Zero values select the defaults.
type Options struct {
	Mode     layout.PagingMode
	Template *layout.Template

	// Filename; built with Filename(Context, Kind, Date, "pdf") when empty.
	Filename string
	Context  string
	Kind     string
	Date     time.Time

	Progress ProgressFunc

	Renderer   renderer.Renderer
	Rasterizer *raster.Rasterizer
	Scale      float64
	Quality    int
	Lossless   bool
	Background color.Color

	Sheet       *style.Sheet
	Fonts       FontGate
	FontTimeout time.Duration

	BatchSize   int
	SettleDelay time.Duration
	BatchDelay  time.Duration
}

// Failure records one skipped target.
type Failure struct {
	Index  int    `json:"index"`
	Marker string `json:"marker"`
	Side   string `json:"side"`
	Kind   string `json:"kind"` // validation | capture | export | assemble
	Error  string `json:"error"`
}

// Summary is the aggregate outcome of the per-target work.
type Summary struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Pages     int       `json:"pages"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Result is the finalized document.
type Result struct {
	ID       string          `json:"id"`
	Filename string          `json:"filename"`
	Data     []byte          `json:"-"`
	Geometry layout.Geometry `json:"geometry"`
	Summary  Summary         `json:"summary"`
}

// Job is created per request and discarded after Run.
type Job struct {
	ID string

	targets []Target
	opts    Options
	geom    layout.Geometry
	raster  *raster.Rasterizer

	mu    sync.Mutex
	state State

	settled bool
}

// New validates the targets and resolves the document geometry.
func New(targets []Target, opts Options) (*Job, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("job: 未配置渲染器")
	}
	tpl, err := commonTemplate(opts.Template, targets)
	if err != nil {
		return nil, err
	}
	geom, err := layout.Resolve(tpl, opts.Mode)
	if err != nil {
		return nil, err
	}
	opts.Template = tpl

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	if opts.FontTimeout <= 0 {
		opts.FontTimeout = DefaultFontTimeout
	}
	if opts.Kind == "" {
		opts.Kind = DefaultKind
	}
	if opts.Filename == "" {
		opts.Filename = Filename(opts.Context, opts.Kind, opts.Date, "pdf")
	}
	r := opts.Rasterizer
	if r == nil {
		r = raster.New(raster.Options{
			Scale:      opts.Scale,
			Quality:    opts.Quality,
			Lossless:   opts.Lossless,
			Background: opts.Background,
		})
	}
	return &Job{
		ID:      uuid.NewString(),
		targets: targets,
		opts:    opts,
		geom:    geom,
		raster:  r,
	}, nil
}

func commonTemplate(tpl *layout.Template, targets []Target) (*layout.Template, error) {
	for _, t := range targets {
		if t.Template == nil {
			continue
		}
		if tpl == nil {
			tpl = t.Template
			continue
		}
		if t.Template == tpl {
			continue
		}
		w1, h1 := tpl.BadgeSize()
		w2, h2 := t.Template.BadgeSize()
		if math.Abs(w1-w2) > 0.01 || math.Abs(h1-h2) > 0.01 {
			return nil, fmt.Errorf("%w: %gx%gmm 与 %gx%gmm", ErrMixedTemplates, w1, h1, w2, h2)
		}
	}
	if tpl == nil {
		return nil, fmt.Errorf("job: 缺少模板")
	}
	return tpl, nil
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// Geometry returns the resolved page geometry.
func (j *Job) Geometry() layout.Geometry { return j.geom }

// Run processes every target in order and finalizes the document. Per-target
// failures are recorded in the summary and never abort the loop; only
// finalization can fail the job. ctx is forwarded to the font wait and to the
// capture calls; it does not stop the loop.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	log := logging.Logger().With("job", j.ID)
	j.setState(Iterating)

	if j.opts.Sheet != nil {
		release := j.opts.Sheet.Override(style.Global, style.Declaration{
			Property: style.PropFontDisplay,
			Value:    style.DisplayBlock,
		})
		defer release()
	}

	n := len(j.targets)
	summary := Summary{Total: n}
	asm := compose.NewAssembler(j.opts.Template.Meta)
	var front *compose.Raster

	log.Info("job started", "targets", n, "mode", j.geom.Mode, "page", fmt.Sprintf("%gx%gmm", j.geom.PageWidth, j.geom.PageHeight))
	for i, t := range j.targets {
		if j.opts.Progress != nil {
			j.opts.Progress(int(math.Round(float64(i+1)/float64(n)*100)), i+1, n)
		}
		if i > 0 && i%j.opts.BatchSize == 0 {
			runtime.Gosched()
			time.Sleep(j.opts.BatchDelay)
		}

		var r *compose.Raster
		err := j.checkSlot(i, t)
		if err == nil {
			r, err = j.process(ctx, t)
		}
		if err != nil {
			f := failure(i, t, err)
			summary.Failures = append(summary.Failures, f)
			log.Warn("target skipped", "index", i, "marker", f.Marker, "kind", f.Kind, "err", err)
		} else {
			summary.Succeeded++
		}

		switch j.geom.Mode {
		case layout.Butterfly:
			if i%2 == 0 {
				front = r
				continue
			}
			j.addPair(asm, &summary, i-1, front, r)
			front = nil
		default:
			if r == nil {
				continue
			}
			if err := asm.AddPage(j.geom, r); err != nil {
				summary.Succeeded--
				summary.Failures = append(summary.Failures, failure(i, t, err))
				log.Warn("page not assembled", "index", i, "err", err)
			}
		}
	}
	if j.geom.Mode == layout.Butterfly && n%2 == 1 {
		// 奇数个目标：最后一张只有正面
		j.addPair(asm, &summary, n-1, front, nil)
	}
	summary.Failed = len(summary.Failures)
	summary.Pages = asm.Len()

	return j.finalize(asm.Document(), summary)
}

// addPair 组装一对 (正面, 背面)；first 为正面的下标。
func (j *Job) addPair(asm *compose.Assembler, summary *Summary, first int, front, back *compose.Raster) {
	_, err := asm.AddPair(j.geom, front, back)
	if err == nil {
		return
	}
	logging.Logger().Warn("page not assembled", "job", j.ID, "index", first, "err", err)
	for k, r := range []*compose.Raster{front, back} {
		if r == nil {
			continue
		}
		summary.Succeeded--
		summary.Failures = append(summary.Failures, failure(first+k, j.targets[first+k], err))
	}
}

func (j *Job) finalize(doc *compose.Document, summary Summary) (*Result, error) {
	log := logging.Logger().With("job", j.ID)
	j.setState(Finalizing)
	if len(doc.Pages) == 0 {
		j.setState(Failed)
		return nil, &FinalizeError{Summary: summary, Err: ErrEmptyDocument}
	}
	data, err := j.opts.Renderer.Render(doc)
	if err != nil {
		j.setState(Failed)
		return nil, &FinalizeError{Summary: summary, Err: err}
	}
	j.setState(Done)
	log.Info("job finished", "pages", summary.Pages, "succeeded", summary.Succeeded, "failed", summary.Failed, "bytes", len(data))
	return &Result{
		ID:       j.ID,
		Filename: j.opts.Filename,
		Data:     data,
		Geometry: j.geom,
		Summary:  summary,
	}, nil
}

// checkSlot 确认 butterfly 模式下偶数位是正面、奇数位是背面。
func (j *Job) checkSlot(i int, t Target) error {
	if j.geom.Mode != layout.Butterfly {
		return nil
	}
	want := surface.Front
	if i%2 == 1 {
		want = surface.Back
	}
	if t.Side != want {
		return fmt.Errorf("%w: 第 %d 个目标为 %s，该位置应为 %s", ErrSideMismatch, i+1, t.Side, want)
	}
	return nil
}

// process 校验并截图单个目标；失败的目标返回 nil 栅格。
func (j *Job) process(ctx context.Context, t Target) (*compose.Raster, error) {
	if err := validate.Check(t.Element); err != nil {
		return nil, err
	}
	j.settle(ctx)

	c, err := j.capture(ctx, t)
	if err != nil {
		return nil, err
	}
	return &compose.Raster{
		Image:  c.Image,
		Width:  j.geom.BadgeWidth,
		Height: j.geom.BadgeHeight,
		Side:   t.Side,
		Label:  t.Element.Marker(),
		Format: c.Format,
	}, nil
}

// capture 在截图前后成对地准备与恢复元素状态，出错时同样恢复。
func (j *Job) capture(ctx context.Context, t Target) (*raster.Capture, error) {
	el, release := compose.Prepare(j.opts.Sheet, t.Element, t.Side)
	defer release()
	return j.raster.Capture(ctx, el)
}

// settle 在第一次截图前等待字体就绪（超时或失败都继续）并等待布局稳定。
func (j *Job) settle(ctx context.Context) {
	if j.settled {
		return
	}
	j.settled = true
	if j.opts.Fonts != nil {
		wctx, cancel := context.WithTimeout(ctx, j.opts.FontTimeout)
		err := j.opts.Fonts.Ready(wctx)
		cancel()
		if err != nil {
			logging.Logger().Warn("fonts not ready, continuing with fallbacks", "job", j.ID, "err", err)
		}
	}
	time.Sleep(j.opts.SettleDelay)
}

func failure(i int, t Target, err error) Failure {
	f := Failure{Index: i, Side: t.Side.String(), Kind: "capture", Error: err.Error()}
	if t.Element != nil {
		f.Marker = t.Element.Marker()
	}
	var (
		ve *validate.Error
		ee *raster.ExportError
	)
	switch {
	case errors.As(err, &ve), errors.Is(err, validate.ErrInvalidElement):
		f.Kind = "validation"
	case errors.As(err, &ee):
		f.Kind = "export"
	case errors.Is(err, compose.ErrPageSizeMismatch), errors.Is(err, ErrSideMismatch):
		f.Kind = "assemble"
	}
	return f
}
