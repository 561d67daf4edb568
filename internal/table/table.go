// Package table loads the topic-keyed CSV tables and selects rows by topic.
package table

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TopicColumn is the key column shared by every source table.
const TopicColumn = "Topic"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a CSV file held as an all-string data frame.
type Table struct {
	name string
	df   dataframe.DataFrame
}

// Load reads the CSV file at path. A missing file yields domain.ErrFileNotFound.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load table %s: %w", path, domain.ErrFileNotFound)
		}
		return nil, fmt.Errorf("load table %s: %w", path, err)
	}
	return Read(path, bytes.NewReader(data))
}

// Read parses CSV from r. Every column is kept as strings so that numeric
// cleaning stays under the caller's control.
func Read(name string, r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse table %s: %v: %w", name, df.Err, domain.ErrMalformedRow)
	}
	if !slices.Contains(df.Names(), TopicColumn) {
		return nil, fmt.Errorf("table %s has no %q column: %w", name, TopicColumn, domain.ErrSchemaMismatch)
	}
	return &Table{name: name, df: df}, nil
}

// Name is the path or label the table was read from.
func (t *Table) Name() string { return t.name }

// Columns returns the header in file order.
func (t *Table) Columns() []string { return t.df.Names() }

// Len is the number of data rows.
func (t *Table) Len() int { return t.df.Nrow() }

// Topics returns the distinct topic labels in first-seen order.
func (t *Table) Topics() []string {
	var out []string
	for _, v := range t.df.Col(TopicColumn).Records() {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// SelectTopic returns the rows whose Topic equals label, in file order.
// No match yields domain.ErrTopicNotFound.
func (t *Table) SelectTopic(label string) (*Selection, error) {
	filtered := t.df.Filter(dataframe.F{
		Colname:    TopicColumn,
		Comparator: series.Eq,
		Comparando: label,
	})
	if filtered.Err != nil {
		return nil, fmt.Errorf("filter %s by topic %q: %w", t.name, label, filtered.Err)
	}
	if filtered.Nrow() == 0 {
		return nil, fmt.Errorf("%s: %q: %w", t.name, label, domain.ErrTopicNotFound)
	}

	records := filtered.Records()
	return &Selection{table: t.name, header: records[0], rows: records[1:]}, nil
}

// Selection is the set of rows one topic owns in a table.
type Selection struct {
	table  string
	header []string
	rows   [][]string
}

// Len is the number of selected rows.
func (s *Selection) Len() int { return len(s.rows) }

// Value returns the cell of row i in the named column. An unknown column
// yields domain.ErrSchemaMismatch.
func (s *Selection) Value(i int, column string) (string, error) {
	idx := slices.Index(s.header, column)
	if idx < 0 {
		return "", fmt.Errorf("%s has no %q column: %w", s.table, column, domain.ErrSchemaMismatch)
	}
	return s.rows[i][idx], nil
}

// Tail returns the cells of row i from column index from onward, e.g. the
// year cells after the Topic and Country columns.
func (s *Selection) Tail(i, from int) []string {
	if from >= len(s.rows[i]) {
		return []string{}
	}
	return slices.Clone(s.rows[i][from:])
}
