package layout

import (
	"fmt"
	"strings"
)

// PagingMode 决定目标如何映射到物理页面。
type PagingMode int

const (
	// Sequential 每个目标占一页，页面尺寸即徽章尺寸。
	Sequential PagingMode = iota
	// Butterfly 将 (正面, 背面) 成对放在一张双倍高度的页面上，背面旋转 180° 置于下半部，便于对折。
	Butterfly
)

func (m PagingMode) String() string {
	switch m {
	case Butterfly:
		return "butterfly"
	default:
		return "sequential"
	}
}

// ParsePagingMode 解析命令行或配置中的分页模式。
func ParsePagingMode(s string) (PagingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential", "single":
		return Sequential, nil
	case "butterfly", "fold", "duplex":
		return Butterfly, nil
	default:
		return Sequential, fmt.Errorf("未知的分页模式 %q（可选 sequential/butterfly）", s)
	}
}

// Orientation 是页面方向。
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

func orientationOf(width, height float64) Orientation {
	if width > height {
		return Landscape
	}
	return Portrait
}
