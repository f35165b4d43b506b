package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ByLCY/badgepress/binding"
	"github.com/ByLCY/badgepress/dsl"
	"github.com/ByLCY/badgepress/job"
	"github.com/ByLCY/badgepress/layout"
	"github.com/ByLCY/badgepress/logging"
	canvasrenderer "github.com/ByLCY/badgepress/renderer/canvas"
	"github.com/ByLCY/badgepress/style"
	"github.com/ByLCY/badgepress/surface"
	canvassurface "github.com/ByLCY/badgepress/surface/canvas"
)

type config struct {
	template   string
	attendees  string
	blank      int
	mode       string
	event      string
	kind       string
	scale      float64
	quality    int
	lossless   bool
	proxyHosts string
	origin     string
	out        string
	report     string
	foldGuide  bool
	verify     bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.template, "template", "examples/default.badge", "徽章模板 DSL 文件路径")
	flag.StringVar(&cfg.attendees, "attendees", "", "参会者 JSON 文件（徽章数据数组）")
	flag.IntVar(&cfg.blank, "blank", 0, "额外生成的空白徽章数量")
	flag.StringVar(&cfg.mode, "mode", "sequential", "分页模式：sequential 或 butterfly")
	flag.StringVar(&cfg.event, "event", "", "活动名称；为空时取第一位参会者的 event.name")
	flag.StringVar(&cfg.kind, "kind", "", "文件名中的类型片段，默认 badges（空白徽章为 blank_badges）")
	flag.Float64Var(&cfg.scale, "scale", 0, "截图缩放倍数 (2–4)，0 使用默认值")
	flag.IntVar(&cfg.quality, "quality", 0, "JPEG 质量 (1–100)，0 使用默认值")
	flag.BoolVar(&cfg.lossless, "lossless", false, "以 PNG 导出并无损嵌入（文件更大）")
	flag.StringVar(&cfg.proxyHosts, "proxy-hosts", "", "允许同源代理的图片域名，逗号分隔")
	flag.StringVar(&cfg.origin, "origin", "", "徽章渲染所在的源，用于判断跨域图片")
	flag.StringVar(&cfg.out, "out", "output/", "PDF 输出目录或文件路径")
	flag.StringVar(&cfg.report, "report", "", "几何与作业摘要 JSON 输出路径")
	flag.BoolVar(&cfg.foldGuide, "fold-guide", false, "butterfly 模式下绘制折叠虚线")
	flag.BoolVar(&cfg.verify, "verify", false, "用 pdfcpu 校验输出的页数与尺寸")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	path, err := run(context.Background(), cfg)
	if err != nil {
		log.Fatalf("生成徽章 PDF 失败: %v", err)
	}
	fmt.Printf("已生成 PDF：%s\n", path)
}

// run 串联模板解析、挂载、截图与渲染，返回写出的 PDF 路径。
func run(ctx context.Context, cfg config) (string, error) {
	mode, err := layout.ParsePagingMode(cfg.mode)
	if err != nil {
		return "", err
	}
	tpl, err := loadTemplate(cfg.template)
	if err != nil {
		return "", err
	}
	badges, err := loadAttendees(cfg.attendees)
	if err != nil {
		return "", err
	}

	event := cfg.event
	if event == "" && len(badges) > 0 {
		event, _ = binding.Lookup(badges[0], "event.name")
	}
	kind := cfg.kind
	for i := 0; i < cfg.blank; i++ {
		badges = append(badges, binding.Blank(event))
	}
	if kind == "" && cfg.blank > 0 && len(badges) == cfg.blank {
		kind = job.BlankKind
	}

	sheet := style.NewSheet()
	surf := canvassurface.New(tpl, canvassurface.Options{
		Sheet:     sheet,
		EventName: cfg.event,
		Images: canvassurface.NewImageLoader(canvassurface.LoaderOptions{
			Origin:     cfg.origin,
			ProxyHosts: splitList(cfg.proxyHosts),
			BaseDir:    filepath.Dir(cfg.template),
		}),
	})
	targets := make([]job.Target, 0, 2*len(badges))
	for i, data := range badges {
		for _, side := range []surface.Side{surface.Front, surface.Back} {
			targets = append(targets, job.Target{Element: surf.Mount(i, data, side), Side: side, Template: tpl})
		}
	}

	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		Verify:    cfg.verify,
		FoldGuide: cfg.foldGuide,
	})
	j, err := job.New(targets, job.Options{
		Mode:     mode,
		Template: tpl,
		Context:  event,
		Kind:     kind,
		Renderer: r,
		Scale:    cfg.scale,
		Quality:  cfg.quality,
		Lossless: cfg.lossless,
		Sheet:    sheet,
		Fonts:    surf.Fonts(),
		Progress: func(percent, current, total int) {
			logging.Logger().Debug("progress", "percent", percent, "current", current, "total", total)
		},
	})
	if err != nil {
		return "", err
	}

	res, err := j.Run(ctx)
	if err != nil {
		var fe *job.FinalizeError
		if errors.As(err, &fe) && cfg.report != "" {
			_ = writeReport(cfg.report, report{Geometry: j.Geometry(), Summary: fe.Summary})
		}
		return "", err
	}
	if cfg.report != "" {
		if err := writeReport(cfg.report, report{ID: res.ID, Filename: res.Filename, Geometry: res.Geometry, Summary: res.Summary}); err != nil {
			return "", err
		}
	}

	outPath := outputPath(cfg.out, res.Filename)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(outPath, res.Data, 0o644); err != nil {
		return "", fmt.Errorf("写入 PDF 文件失败: %w", err)
	}
	return outPath, nil
}

func loadTemplate(path string) (*layout.Template, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开模板文件 %s: %w", path, err)
	}
	defer file.Close()

	doc, err := dsl.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("解析模板失败: %w", err)
	}
	tpl, err := layout.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("构建模板失败: %w", err)
	}
	return tpl, nil
}

func loadAttendees(path string) ([]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取参会者文件 %s: %w", path, err)
	}
	var badges []any
	if err := json.Unmarshal(data, &badges); err != nil {
		return nil, fmt.Errorf("解析参会者 JSON 失败: %w", err)
	}
	return badges, nil
}

// outputPath 在 out 为目录（已存在或以 / 结尾）时拼接约定文件名。
func outputPath(out, filename string) string {
	if out == "" {
		return filename
	}
	if strings.HasSuffix(out, "/") || strings.HasSuffix(out, string(filepath.Separator)) {
		return filepath.Join(out, filename)
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, filename)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type report struct {
	ID       string          `json:"id,omitempty"`
	Filename string          `json:"filename,omitempty"`
	Geometry layout.Geometry `json:"geometry"`
	Summary  job.Summary     `json:"summary"`
}

func writeReport(path string, r report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(r, path); err != nil {
		return fmt.Errorf("输出报告 JSON 失败: %w", err)
	}
	return nil
}
