package raster

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLadderExhausted is wrapped by CaptureError once every tier has failed.
var ErrLadderExhausted = errors.New("raster: every capture tier failed")

// CaptureError reports that no tier produced a buffer.
type CaptureError struct {
	Marker   string
	Attempts []error
}

func (e *CaptureError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		msgs = append(msgs, a.Error())
	}
	return fmt.Sprintf("元素 %s 栅格化失败: %s", e.Marker, strings.Join(msgs, "; "))
}

func (e *CaptureError) Unwrap() []error {
	return append([]error{ErrLadderExhausted}, e.Attempts...)
}

// ExportError reports that a captured buffer could not be read back, neither
// directly nor through the blob fallback.
type ExportError struct {
	Marker string
	Tier   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("元素 %s 导出图像失败（%s）: %v", e.Marker, e.Tier, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
