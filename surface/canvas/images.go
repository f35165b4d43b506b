package canvassurface

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/ByLCY/badgepress/logging"
)

// ErrNotProxied 表示跨域图片所在主机不在代理白名单内，无法获得同源副本。
var ErrNotProxied = errors.New("canvassurface: 图片主机未配置代理")

// LoaderOptions configures an ImageLoader.
type LoaderOptions struct {
	Client *http.Client
	// Origin is the origin badges are rendered under, e.g. "https://badges.example.com".
	Origin string
	// ProxyHosts lists host suffixes whose images may be re-fetched server-side
	// as same-origin copies.
	ProxyHosts []string
	// BaseDir resolves relative image paths.
	BaseDir string
}

type fetched struct {
	img  image.Image
	cors bool
}

// ImageLoader fetches background images and tracks whether drawing them
// taints the capture buffer.
type ImageLoader struct {
	client     *http.Client
	origin     *url.URL
	proxyHosts []string
	baseDir    string

	mu      sync.Mutex
	direct  map[string]*fetched
	proxied map[string]image.Image
}

// NewImageLoader creates a loader.
func NewImageLoader(opts LoaderOptions) *ImageLoader {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	var origin *url.URL
	if opts.Origin != "" {
		if u, err := url.Parse(opts.Origin); err == nil {
			origin = u
		}
	}
	hosts := make([]string, 0, len(opts.ProxyHosts))
	for _, h := range opts.ProxyHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &ImageLoader{
		client:     client,
		origin:     origin,
		proxyHosts: hosts,
		baseDir:    opts.BaseDir,
		direct:     map[string]*fetched{},
		proxied:    map[string]image.Image{},
	}
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func (l *ImageLoader) sameOrigin(u *url.URL) bool {
	return l.origin != nil && strings.EqualFold(u.Scheme, l.origin.Scheme) && strings.EqualFold(u.Host, l.origin.Host)
}

// Proxied reports whether src can be re-fetched as a same-origin copy.
func (l *ImageLoader) Proxied(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range l.proxyHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Load returns the image for src. Cross-origin images are skipped (nil image,
// no error) unless allowCrossOrigin is set; when drawn without a permissive
// CORS response they taint the buffer.
func (l *ImageLoader) Load(ctx context.Context, src string, allowCrossOrigin bool) (img image.Image, tainted bool, err error) {
	if !isRemote(src) {
		img, err := l.local(src)
		return img, false, err
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, false, fmt.Errorf("图片地址 %s 无效: %w", src, err)
	}
	cross := !l.sameOrigin(u)
	if cross && !allowCrossOrigin {
		logging.Logger().Debug("cross-origin image skipped", "src", src)
		return nil, false, nil
	}

	l.mu.Lock()
	f, ok := l.direct[src]
	l.mu.Unlock()
	if !ok {
		img, header, err := l.fetch(ctx, src, cross)
		if err != nil {
			return nil, false, err
		}
		f = &fetched{img: img, cors: !cross || l.allowsOrigin(header)}
		l.mu.Lock()
		l.direct[src] = f
		l.mu.Unlock()
	}
	return f.img, !f.cors, nil
}

// LoadSameOrigin returns an untainted copy of src: local and same-origin
// images directly, cross-origin ones only through the proxy allowlist.
func (l *ImageLoader) LoadSameOrigin(ctx context.Context, src string) (image.Image, error) {
	if !isRemote(src) {
		return l.local(src)
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("图片地址 %s 无效: %w", src, err)
	}
	if l.sameOrigin(u) {
		img, _, err := l.Load(ctx, src, false)
		return img, err
	}
	if !l.Proxied(src) {
		return nil, fmt.Errorf("%w: %s", ErrNotProxied, u.Host)
	}

	l.mu.Lock()
	img, ok := l.proxied[src]
	l.mu.Unlock()
	if ok {
		return img, nil
	}
	img, _, err = l.fetch(ctx, src, false)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.proxied[src] = img
	l.mu.Unlock()
	logging.Logger().Debug("image proxied", "src", src)
	return img, nil
}

func (l *ImageLoader) allowsOrigin(h http.Header) bool {
	allow := strings.TrimSpace(h.Get("Access-Control-Allow-Origin"))
	if allow == "*" {
		return true
	}
	return l.origin != nil && allow != "" && strings.EqualFold(strings.TrimSuffix(allow, "/"), l.origin.Scheme+"://"+l.origin.Host)
}

func (l *ImageLoader) fetch(ctx context.Context, src string, cors bool) (image.Image, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, nil, err
	}
	if cors && l.origin != nil {
		req.Header.Set("Origin", l.origin.Scheme+"://"+l.origin.Host)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("下载图片 %s 失败: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("下载图片 %s 失败: HTTP %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("解码图片 %s 失败: %w", src, err)
	}
	return img, resp.Header, nil
}

func (l *ImageLoader) local(src string) (image.Image, error) {
	path := src
	if !filepath.IsAbs(path) && l.baseDir != "" {
		path = filepath.Join(l.baseDir, path)
	}
	l.mu.Lock()
	f, ok := l.direct[path]
	l.mu.Unlock()
	if ok {
		return f.img, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", src, err)
	}
	l.mu.Lock()
	l.direct[path] = &fetched{img: img, cors: true}
	l.mu.Unlock()
	return img, nil
}
