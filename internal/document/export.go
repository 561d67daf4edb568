package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// ExportEndpoints writes every iran_statistics.statistics section to
// dir/<section>.json so the website can fetch one section at a time.
// It returns the written paths in document order.
func ExportEndpoints(d *Document, dir string) ([]string, error) {
	sections := d.Get(Root, "statistics")
	if !sections.IsObject() {
		return nil, fmt.Errorf("document has no %s.statistics object", Root)
	}

	var written []string
	var exportErr error
	sections.ForEach(func(key, value gjson.Result) bool {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(value.Raw), "", indentUnit); err != nil {
			exportErr = fmt.Errorf("section %q: %w", key.String(), err)
			return false
		}
		buf.WriteByte('\n')

		path := filepath.Join(dir, key.String()+".json")
		if err := WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
			exportErr = fmt.Errorf("section %q: %w", key.String(), err)
			return false
		}
		written = append(written, path)
		return true
	})
	if exportErr != nil {
		return written, exportErr
	}
	return written, nil
}
