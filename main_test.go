package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ByLCY/badgepress/job"
	"github.com/ByLCY/badgepress/layout"
	canvasrenderer "github.com/ByLCY/badgepress/renderer/canvas"
)

const testTemplate = `template Summit v1 {
  page { size: a7 bleed: 3mm }
  background { color: #ffffff }
  name { size: 20 font: go-bold }
  field company { label: "Company" size: 12 }
  qr { front: false back: true size: 15mm }
  meta { title: "Summit badges" }
}`

const testAttendees = `[
  {"attendee": {"name": "Ada Lovelace", "company": "Analytical Engines", "email": "ada@example.com"}, "event": {"name": "Go Summit"}, "ticket": {"type": "Speaker", "colour": "#7c3aed"}},
  {"attendee": {"name": "Grace Hopper", "company": "US Navy"}, "event": {"name": "Go Summit"}, "ticket": {"type": "Attendee"}},
  {"attendee": {"name": "Zoë Müller"}, "event": {"name": "Go Summit"}}
]`

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "summit.badge")
	if err := os.WriteFile(tplPath, []byte(testTemplate), 0o644); err != nil {
		t.Fatalf("写入模板失败: %v", err)
	}
	attPath := filepath.Join(dir, "attendees.json")
	if err := os.WriteFile(attPath, []byte(testAttendees), 0o644); err != nil {
		t.Fatalf("写入参会者失败: %v", err)
	}
	return tplPath, attPath
}

func TestRunButterfly(t *testing.T) {
	tplPath, attPath := writeInputs(t)
	out := t.TempDir()
	reportPath := filepath.Join(out, "report", "summary.json")

	path, err := run(t.Context(), config{
		template:  tplPath,
		attendees: attPath,
		mode:      "butterfly",
		out:       out,
		report:    reportPath,
		foldGuide: true,
		verify:    true,
	})
	if err != nil {
		t.Fatalf("run 失败: %v", err)
	}
	if filepath.Dir(path) != out || !strings.HasPrefix(filepath.Base(path), "Go_Summit_badges_") {
		t.Fatalf("输出路径不符合约定: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取 PDF 失败: %v", err)
	}
	if n := bytes.Count(data, []byte("/DCTDecode")); n != 6 {
		t.Fatalf("6 个 JPEG 栅格都应以 DCTDecode 嵌入, got %d", n)
	}
	pages, err := canvasrenderer.Inspect(data)
	if err != nil {
		t.Fatalf("Inspect 失败: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("3 位参会者应得到 3 页, got %d", len(pages))
	}
	for i, p := range pages {
		if math.Abs(p.Width-80*layout.MmToPt) > 0.5 || math.Abs(p.Height-222*layout.MmToPt) > 0.5 {
			t.Fatalf("第 %d 页尺寸 %.1fx%.1fpt, 期望 80x222mm", i+1, p.Width, p.Height)
		}
	}

	raw, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	var rep struct {
		Geometry layout.Geometry `json:"geometry"`
		Summary  job.Summary     `json:"summary"`
	}
	if err := json.Unmarshal(raw, &rep); err != nil {
		t.Fatalf("解析报告失败: %v", err)
	}
	if rep.Summary.Total != 6 || rep.Summary.Succeeded != 6 || rep.Summary.Pages != 3 {
		t.Fatalf("unexpected summary: %+v", rep.Summary)
	}
	if rep.Geometry.PageHeight != 222 || rep.Geometry.Mode != layout.Butterfly {
		t.Fatalf("unexpected geometry: %+v", rep.Geometry)
	}
}

func TestRunBlankBadges(t *testing.T) {
	tplPath, _ := writeInputs(t)
	out := filepath.Join(t.TempDir(), "walk-in.pdf")

	path, err := run(t.Context(), config{
		template: tplPath,
		blank:    2,
		mode:     "sequential",
		event:    "Go Summit",
		out:      out,
		verify:   true,
	})
	if err != nil {
		t.Fatalf("run 失败: %v", err)
	}
	if path != out {
		t.Fatalf("指定文件路径时应原样写出, got %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取 PDF 失败: %v", err)
	}
	if err := canvasrenderer.Verify(data, 4, 80, 111); err != nil {
		t.Fatalf("Verify 失败: %v", err)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	tplPath, attPath := writeInputs(t)
	if _, err := run(t.Context(), config{template: tplPath, attendees: attPath, mode: "zigzag"}); err == nil {
		t.Fatalf("未知分页模式应报错")
	}
	if _, err := run(t.Context(), config{template: tplPath, mode: "sequential"}); err == nil {
		t.Fatalf("没有参会者也没有空白徽章时应报错")
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	cases := []struct{ out, want string }{
		{"", "a.pdf"},
		{"output/", filepath.Join("output", "a.pdf")},
		{dir, filepath.Join(dir, "a.pdf")},
		{filepath.Join(dir, "b.pdf"), filepath.Join(dir, "b.pdf")},
	}
	for _, tc := range cases {
		if got := outputPath(tc.out, "a.pdf"); got != tc.want {
			t.Fatalf("outputPath(%q) = %q, want %q", tc.out, got, tc.want)
		}
	}
}
