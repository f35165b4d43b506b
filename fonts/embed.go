package fonts

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// builtin 为内置字体名到 TTF 数据的映射。
var builtin = map[string][]byte{
	"go-regular":     goregular.TTF,
	"go-bold":        gobold.TTF,
	"go-italic":      goitalic.TTF,
	"go-bold-italic": gobolditalic.TTF,
	"go-medium":      gomedium.TTF,
	"go-mono":        gomono.TTF,
}

// FallbackName 是字体未就绪或加载失败时使用的字体。
const FallbackName = "go-regular"

var httpClient = &http.Client{Timeout: 15 * time.Second}

// IsRemote 判断字体来源是否需要经网络获取（即外部字体样式表引用）。
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Load 返回字体的字节数据。src 可写为内置名 "go-bold"、"embed:go-bold"、本地路径或 http(s) URL。
func Load(src string) ([]byte, error) {
	name := strings.TrimPrefix(src, "embed:")
	if data, ok := builtin[strings.ToLower(name)]; ok {
		return data, nil
	}
	if IsRemote(src) {
		resp, err := httpClient.Get(src)
		if err != nil {
			return nil, fmt.Errorf("下载字体 %s 失败: %w", src, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("下载字体 %s 失败: HTTP %d", src, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	if strings.HasPrefix(src, "embed:") {
		return nil, fmt.Errorf("找不到内置字体 %s", name)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", src, err)
	}
	return data, nil
}
