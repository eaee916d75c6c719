// Package table flattens feature collections into rows and columns.
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"gopkg.in/yaml.v3"
)

// Geometry column names.
const (
	ColLongitude         = "longitude"
	ColLatitude          = "latitude"
	ColAltitude          = "altitude"
	ColCentroidLongitude = "centroid_longitude"
	ColCentroidLatitude  = "centroid_latitude"
)

// Row is one flattened feature. Absent columns have no key.
type Row map[string]any

// Table is an ordered set of rows sharing a column list.
type Table struct {
	Columns []string
	Rows    []Row
}

// Series is an index/value column pair, e.g. dates and water levels.
type Series struct {
	Name      string `json:"name"`
	IndexName string `json:"index_name"`
	Index     []any  `json:"index"`
	Values    []any  `json:"values"`
}

// Table returns the series as a two-column table.
func (s *Series) Table() *Table {
	t := &Table{Columns: []string{s.IndexName, s.Name}, Rows: make([]Row, len(s.Index))}
	for i := range s.Index {
		t.Rows[i] = Row{s.IndexName: s.Index[i], s.Name: s.Values[i]}
	}
	return t
}

// Option customizes FromCollection.
type Option func(*options)

type timeColumn struct {
	src, dst string
}

type options struct {
	idColumn    string
	timeColumns []timeColumn
	centroids   bool
}

// WithIDColumn stores the feature id in column name.
func WithIDColumn(name string) Option {
	return func(o *options) { o.idColumn = name }
}

// WithTimeColumn parses property src into a time.Time column dst. Values that
// do not parse are left nil. dst may equal src.
func WithTimeColumn(src, dst string) Option {
	return func(o *options) { o.timeColumns = append(o.timeColumns, timeColumn{src: src, dst: dst}) }
}

// WithCentroids adds centroid columns for every geometry type.
func WithCentroids() Option {
	return func(o *options) { o.centroids = true }
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// HasColumn reports whether col is part of the table.
func (t *Table) HasColumn(col string) bool {
	return slices.Contains(t.Columns, col)
}

// Column returns the values of col, nil where a row lacks it.
func (t *Table) Column(col string) ([]any, error) {
	if !t.HasColumn(col) {
		return nil, missingColumn("Column", col)
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col]
	}
	return out, nil
}

// Series pairs the index column with the data column.
func (t *Table) Series(index, data string) (*Series, error) {
	idx, err := t.Column(index)
	if err != nil {
		return nil, err
	}
	vals, err := t.Column(data)
	if err != nil {
		return nil, err
	}
	return &Series{Name: data, IndexName: index, Index: idx, Values: vals}, nil
}

// SortBy orders rows by col in ascending order. Missing values sort last and
// equal values keep their order.
func (t *Table) SortBy(col string) error {
	if !t.HasColumn(col) {
		return missingColumn("SortBy", col)
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return less(t.Rows[i][col], t.Rows[j][col])
	})
	return nil
}

// WriteCSV writes a header line and one record per row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for i, r := range t.Rows {
		for j, col := range t.Columns {
			s, err := formatCell(r[col])
			if err != nil {
				return &errs.ConversionError{Op: "WriteCSV", Reason: fmt.Sprintf("row %d column %q: %v", i, col, err)}
			}
			record[j] = s
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteYAML writes the rows as a YAML sequence of mappings in column order.
func (t *Table) WriteYAML(w io.Writer) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for i, r := range t.Rows {
		row := &yaml.Node{Kind: yaml.MappingNode}
		for _, col := range t.Columns {
			v, ok := r[col]
			if !ok {
				continue
			}
			val := &yaml.Node{}
			if err := val.Encode(v); err != nil {
				return &errs.ConversionError{Op: "WriteYAML", Reason: fmt.Sprintf("row %d column %q: %v", i, col, err)}
			}
			row.Content = append(row.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: col}, val)
		}
		doc.Content = append(doc.Content, row)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write yaml: %w", err)
	}
	return enc.Close()
}

func missingColumn(op, col string) error {
	return &errs.ConversionError{Op: op, Reason: fmt.Sprintf("no column %q", col)}
}

func formatCell(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return x.Format(time.RFC3339), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func less(a, b any) bool {
	if a == nil || b == nil {
		return a != nil
	}
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case string:
		if y, ok := b.(string); ok {
			return x < y
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Before(y)
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
