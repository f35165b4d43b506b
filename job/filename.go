package job

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// 默认的文件名片段。
const (
	DefaultKind    = "badges"
	BlankKind      = "blank_badges"
	DefaultContext = "badgepress"
)

// Filename builds `{context}_{kind}_{yyyy-mm-dd}.{ext}`. Accents are folded to
// their base letters; every other character outside [A-Za-z0-9] becomes "_".
func Filename(context, kind string, date time.Time, ext string) string {
	name := sanitize(context)
	if name == "" {
		name = DefaultContext
	}
	if kind = sanitize(kind); kind == "" {
		kind = DefaultKind
	}
	if date.IsZero() {
		date = time.Now()
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "pdf"
	}
	return name + "_" + kind + "_" + date.Format(time.DateOnly) + "." + ext
}

func sanitize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
