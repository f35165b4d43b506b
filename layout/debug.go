package layout

import (
	"encoding/json"
	"os"
)

// WriteDebugJSON 将模板、几何或作业摘要输出为 JSON，便于调试或排查打印尺寸。
func WriteDebugJSON(v any, path string) error {
	if v == nil {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
