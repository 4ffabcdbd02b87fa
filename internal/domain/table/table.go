package table

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

// Table is an ordered set of equally long columns.
type Table struct {
	columns []Column
	index   map[string]int
}

// New creates a table from cols. All columns must have the same length.
func New(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NumRows returns the row count, 0 for a table without columns.
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

func (t *Table) NumColumns() int { return len(t.columns) }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name()
	}
	return names
}

// Columns returns the columns in table order.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// AddColumn appends col, or replaces the column of the same name in place.
func (t *Table) AddColumn(col Column) error {
	if len(t.columns) > 0 && col.Len() != t.NumRows() {
		return exception.NewBatchErrorf("table", "column %q has %d rows, table has %d", col.Name(), col.Len(), t.NumRows())
	}
	if i, ok := t.index[col.Name()]; ok {
		t.columns[i] = col
		return nil
	}
	t.index[col.Name()] = len(t.columns)
	t.columns = append(t.columns, col)
	return nil
}

// Has reports whether a column named name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the column named name or a *exception.MissingColumnError.
func (t *Table) Column(name string) (Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, exception.NewMissingColumnError(name, t.ColumnNames())
	}
	return t.columns[i], nil
}

// Require checks that every name exists, reporting the first missing one.
func (t *Table) Require(names ...string) error {
	for _, name := range names {
		if !t.Has(name) {
			return exception.NewMissingColumnError(name, t.ColumnNames())
		}
	}
	return nil
}

func (t *Table) Strings(name string) (*StringColumn, error) {
	c, err := t.typed(name, KindString)
	if err != nil {
		return nil, err
	}
	return c.(*StringColumn), nil
}

func (t *Table) Float64s(name string) (*Float64Column, error) {
	c, err := t.typed(name, KindFloat64)
	if err != nil {
		return nil, err
	}
	return c.(*Float64Column), nil
}

func (t *Table) Int64s(name string) (*Int64Column, error) {
	c, err := t.typed(name, KindInt64)
	if err != nil {
		return nil, err
	}
	return c.(*Int64Column), nil
}

func (t *Table) Bools(name string) (*BoolColumn, error) {
	c, err := t.typed(name, KindBool)
	if err != nil {
		return nil, err
	}
	return c.(*BoolColumn), nil
}

func (t *Table) Times(name string) (*TimeColumn, error) {
	c, err := t.typed(name, KindTime)
	if err != nil {
		return nil, err
	}
	return c.(*TimeColumn), nil
}

func (t *Table) typed(name string, kind Kind) (Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind() != kind {
		return nil, exception.NewBatchErrorf("table", "column %q is %s, expected %s", name, c.Kind(), kind)
	}
	return c, nil
}

// Take returns a new table holding rows at indices, in that order.
func (t *Table) Take(indices []int) *Table {
	out := &Table{index: make(map[string]int, len(t.columns))}
	for i, c := range t.columns {
		out.columns = append(out.columns, c.take(indices))
		out.index[c.Name()] = i
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{index: make(map[string]int, len(t.columns))}
	for i, c := range t.columns {
		out.columns = append(out.columns, c.clone())
		out.index[c.Name()] = i
	}
	return out
}

// Schema renders one "name: kind" line per column.
func (t *Table) Schema() string {
	var b strings.Builder
	for _, c := range t.columns {
		fmt.Fprintf(&b, "%s: %s\n", c.Name(), c.Kind())
	}
	return b.String()
}

// Head renders the first n rows as an aligned text table.
func (t *Table) Head(n int) string {
	if n > t.NumRows() {
		n = t.NumRows()
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "\t"+strings.Join(t.ColumnNames(), "\t")+"\t\n")
	for i := 0; i < n; i++ {
		cells := make([]string, len(t.columns))
		for j, c := range t.columns {
			cells[j] = c.Format(i)
		}
		fmt.Fprintf(w, "%d\t%s\t\n", i, strings.Join(cells, "\t"))
	}
	w.Flush()
	return b.String()
}
