// Package document reads, merges and writes the shared statistics document.
//
// The document is edited in place at the byte level: only the values a topic
// owns are replaced or inserted, so every other byte of the file survives a
// merge untouched.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Root is the top-level key every document carries.
const Root = "iran_statistics"

// TimestampLayout is the metadata.last_updated format.
const TimestampLayout = "2006-01-02T15:04:05Z"

const indentUnit = "  "

// Document is a parsed statistics document held as raw JSON bytes.
type Document struct {
	raw []byte
}

// Load reads the document at path. A missing file is domain.ErrFileNotFound;
// the document is never created implicitly.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load document %s: %w", path, domain.ErrFileNotFound)
		}
		return nil, fmt.Errorf("load document %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates data as a statistics document.
func Parse(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("document is not valid JSON: %w", domain.ErrSchemaMismatch)
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("document root is not an object: %w", domain.ErrSchemaMismatch)
	}
	if !gjson.GetBytes(data, Root).IsObject() {
		return nil, fmt.Errorf("document has no %q object: %w", Root, domain.ErrSchemaMismatch)
	}
	return &Document{raw: slices.Clone(data)}, nil
}

// Bytes returns a copy of the current document.
func (d *Document) Bytes() []byte { return slices.Clone(d.raw) }

// Get looks up a value by path components below the document root, e.g.
// Get("iran_statistics", "details", "death_penalty", "title").
func (d *Document) Get(path ...string) gjson.Result {
	return gjson.GetBytes(d.raw, joinPath(path))
}

// StatisticsPath is the document path of a topic's summary container.
func StatisticsPath(spec domain.TopicSpec) []string {
	return append([]string{Root, "statistics"}, spec.StatisticsKeys()...)
}

// DetailsPath is the document path of a topic's details container.
func DetailsPath(spec domain.TopicSpec) []string {
	return []string{Root, "details", spec.DetailsKey}
}

// WorldPath is the document path of a topic's per-country comparison.
func WorldPath(spec domain.TopicSpec) []string {
	return append(DetailsPath(spec), "world")
}

// CheckSchema verifies that every container the topic writes into exists.
func (d *Document) CheckSchema(spec domain.TopicSpec) error {
	required := [][]string{StatisticsPath(spec), DetailsPath(spec)}
	if spec.World {
		required = append(required, WorldPath(spec))
	}
	for _, p := range required {
		if !d.Get(p...).IsObject() {
			return fmt.Errorf("topic %q: document has no object at %s: %w",
				spec.Label, strings.Join(p, "."), domain.ErrSchemaMismatch)
		}
	}
	return nil
}

// Apply writes a topic record into the document. Only the topic's own keys
// are touched. If any container is missing the document is left unchanged.
func (d *Document) Apply(rec domain.TopicRecord) error {
	spec := rec.Spec
	if err := d.CheckSchema(spec); err != nil {
		return err
	}
	if spec.World && rec.World == nil {
		return fmt.Errorf("topic %q: record has no world series: %w", spec.Label, domain.ErrSchemaMismatch)
	}

	work := &Document{raw: slices.Clone(d.raw)}

	stats := StatisticsPath(spec)
	details := DetailsPath(spec)
	updates := []struct {
		path  []string
		value any
	}{
		{child(stats, "daily_average"), rec.Summary.DailyAverage},
		{child(stats, "monthly_average"), rec.Summary.MonthlyAverage},
		{child(stats, "yearly_average"), rec.Summary.YearlyAverage},
		{child(details, "title"), rec.Detail.Title},
		{child(details, "description"), rec.Detail.Description},
		{child(details, "sources"), nonNil(rec.Detail.Sources)},
		{child(details, "sources_links"), nonNil(rec.Detail.SourcesLinks)},
		{child(details, "chartYears"), nonNil(rec.Local.Years)},
		{child(details, "chartData"), nonNil(rec.Local.Values)},
	}
	for _, u := range updates {
		if err := work.Set(u.path, u.value); err != nil {
			return fmt.Errorf("topic %q: %w", spec.Label, err)
		}
	}

	if spec.World {
		world := WorldPath(spec)
		if err := work.Set(child(world, "chartYears"), nonNil(rec.World.Years)); err != nil {
			return fmt.Errorf("topic %q: %w", spec.Label, err)
		}
		for _, country := range rec.World.Countries {
			if err := work.Set(child(world, country), rec.World.Entries[country]); err != nil {
				return fmt.Errorf("topic %q: country %q: %w", spec.Label, country, err)
			}
		}
	}

	d.raw = work.raw
	return nil
}

// Touch stamps metadata.last_updated.
func (d *Document) Touch(now time.Time) error {
	meta := []string{Root, "metadata"}
	if !d.Get(meta...).IsObject() {
		return fmt.Errorf("document has no object at %s: %w", strings.Join(meta, "."), domain.ErrSchemaMismatch)
	}
	return d.Set(child(meta, "last_updated"), now.UTC().Format(TimestampLayout))
}

// SetSection places an already encoded JSON object at iran_statistics.<key>.
func (d *Document) SetSection(key string, raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("section %q is not valid JSON", key)
	}
	return d.Set([]string{Root, key}, json.RawMessage(raw))
}

// Set replaces the value at path, or inserts it when the parent object lacks
// the key. The parent must already exist.
func (d *Document) Set(path []string, value any) error {
	if len(path) < 2 {
		return fmt.Errorf("set %q: path too short", strings.Join(path, "."))
	}
	raw, err := encodeValue(value, len(path))
	if err != nil {
		return fmt.Errorf("encode %s: %w", strings.Join(path, "."), err)
	}

	if d.Get(path...).Exists() {
		out, err := sjson.SetRawBytes(slices.Clone(d.raw), joinPath(path), raw)
		if err != nil {
			return fmt.Errorf("set %s: %w", strings.Join(path, "."), err)
		}
		d.raw = out
		return nil
	}
	return d.insert(path[:len(path)-1], path[len(path)-1], raw)
}

// insert appends key to the object at parent, indented to match its depth.
func (d *Document) insert(parent []string, key string, raw []byte) error {
	obj := d.Get(parent...)
	if !obj.IsObject() {
		return fmt.Errorf("document has no object at %s: %w", strings.Join(parent, "."), domain.ErrSchemaMismatch)
	}
	if obj.Index <= 0 {
		out, err := sjson.SetRawBytes(slices.Clone(d.raw), joinPath(append(slices.Clone(parent), key)), raw)
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", strings.Join(parent, "."), key, err)
		}
		d.raw = out
		return nil
	}

	encodedKey, err := encodeValue(key, 0)
	if err != nil {
		return err
	}
	depth := len(parent)
	member := make([]byte, 0, len(encodedKey)+len(raw)+2)
	member = append(member, encodedKey...)
	member = append(member, ": "...)
	member = append(member, raw...)

	start := obj.Index
	end := obj.Index + len(obj.Raw) - 1 // closing brace
	var buf bytes.Buffer
	buf.Grow(len(d.raw) + len(member) + 4*depth + 8)

	if len(bytes.TrimSpace(d.raw[start+1:end])) == 0 {
		buf.Write(d.raw[:start])
		buf.WriteString("{\n")
		buf.WriteString(strings.Repeat(indentUnit, depth+1))
		buf.Write(member)
		buf.WriteString("\n")
		buf.WriteString(strings.Repeat(indentUnit, depth))
		buf.WriteString("}")
		buf.Write(d.raw[end+1:])
	} else {
		last := end - 1
		for last > start && isSpace(d.raw[last]) {
			last--
		}
		buf.Write(d.raw[:last+1])
		buf.WriteString(",\n")
		buf.WriteString(strings.Repeat(indentUnit, depth+1))
		buf.Write(member)
		buf.Write(d.raw[last+1:])
	}
	d.raw = buf.Bytes()
	return nil
}

// encodeValue marshals v as indented JSON whose continuation lines sit at the
// given nesting depth. HTML characters are written as is.
func encodeValue(v any, depth int) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(strings.Repeat(indentUnit, depth), indentUnit)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func joinPath(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = gjson.Escape(p)
	}
	return strings.Join(parts, ".")
}

func child(path []string, key string) []string {
	return append(slices.Clone(path), key)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// nonNil keeps empty lists as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
