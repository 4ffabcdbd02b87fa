// Package table holds the in-memory columnar table passed between the
// loader, the feature builder, the writer and the trainer.
package table

import (
	"strconv"
	"time"
)

// Kind identifies the value type of a column.
type Kind int

const (
	KindString Kind = iota
	KindFloat64
	KindInt64
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFloat64:
		return "float64"
	case KindInt64:
		return "int64"
	case KindBool:
		return "bool"
	case KindTime:
		return "timestamp[UTC]"
	default:
		return "unknown"
	}
}

// Column is one named, typed column.
type Column interface {
	Name() string
	Kind() Kind
	Len() int
	// Format renders row i for previews. Missing values render as "NaN".
	Format(i int) string

	take(indices []int) Column
	clone() Column
}

// StringColumn holds categorical values such as station ids.
type StringColumn struct {
	name   string
	Values []string
}

func NewStringColumn(name string, values []string) *StringColumn {
	return &StringColumn{name: name, Values: values}
}

func (c *StringColumn) Name() string        { return c.name }
func (c *StringColumn) Kind() Kind          { return KindString }
func (c *StringColumn) Len() int            { return len(c.Values) }
func (c *StringColumn) Format(i int) string { return c.Values[i] }

func (c *StringColumn) take(indices []int) Column {
	out := make([]string, len(indices))
	for j, i := range indices {
		out[j] = c.Values[i]
	}
	return NewStringColumn(c.name, out)
}

func (c *StringColumn) clone() Column {
	return NewStringColumn(c.name, append([]string(nil), c.Values...))
}

// Float64Column holds nullable numeric values. Valid[i] is false for a missing value.
type Float64Column struct {
	name   string
	Values []float64
	Valid  []bool
}

// NewFloat64Column creates a Float64Column. A nil valid slice marks every value present.
func NewFloat64Column(name string, values []float64, valid []bool) *Float64Column {
	if valid == nil {
		valid = make([]bool, len(values))
		for i := range valid {
			valid[i] = true
		}
	}
	return &Float64Column{name: name, Values: values, Valid: valid}
}

// NewNullFloat64Column creates a column of n missing values.
func NewNullFloat64Column(name string, n int) *Float64Column {
	return &Float64Column{name: name, Values: make([]float64, n), Valid: make([]bool, n)}
}

func (c *Float64Column) Name() string { return c.name }
func (c *Float64Column) Kind() Kind   { return KindFloat64 }
func (c *Float64Column) Len() int     { return len(c.Values) }

// At returns the value of row i and whether it is present.
func (c *Float64Column) At(i int) (float64, bool) {
	return c.Values[i], c.Valid[i]
}

// Set stores a present value at row i.
func (c *Float64Column) Set(i int, v float64) {
	c.Values[i] = v
	c.Valid[i] = true
}

func (c *Float64Column) Format(i int) string {
	if !c.Valid[i] {
		return "NaN"
	}
	return strconv.FormatFloat(c.Values[i], 'g', 6, 64)
}

func (c *Float64Column) take(indices []int) Column {
	values := make([]float64, len(indices))
	valid := make([]bool, len(indices))
	for j, i := range indices {
		values[j] = c.Values[i]
		valid[j] = c.Valid[i]
	}
	return &Float64Column{name: c.name, Values: values, Valid: valid}
}

func (c *Float64Column) clone() Column {
	return &Float64Column{
		name:   c.name,
		Values: append([]float64(nil), c.Values...),
		Valid:  append([]bool(nil), c.Valid...),
	}
}

// Int64Column holds integral values such as calendar features.
type Int64Column struct {
	name   string
	Values []int64
}

func NewInt64Column(name string, values []int64) *Int64Column {
	return &Int64Column{name: name, Values: values}
}

func (c *Int64Column) Name() string        { return c.name }
func (c *Int64Column) Kind() Kind          { return KindInt64 }
func (c *Int64Column) Len() int            { return len(c.Values) }
func (c *Int64Column) Format(i int) string { return strconv.FormatInt(c.Values[i], 10) }

func (c *Int64Column) take(indices []int) Column {
	out := make([]int64, len(indices))
	for j, i := range indices {
		out[j] = c.Values[i]
	}
	return NewInt64Column(c.name, out)
}

func (c *Int64Column) clone() Column {
	return NewInt64Column(c.name, append([]int64(nil), c.Values...))
}

type BoolColumn struct {
	name   string
	Values []bool
}

func NewBoolColumn(name string, values []bool) *BoolColumn {
	return &BoolColumn{name: name, Values: values}
}

func (c *BoolColumn) Name() string        { return c.name }
func (c *BoolColumn) Kind() Kind          { return KindBool }
func (c *BoolColumn) Len() int            { return len(c.Values) }
func (c *BoolColumn) Format(i int) string { return strconv.FormatBool(c.Values[i]) }

func (c *BoolColumn) take(indices []int) Column {
	out := make([]bool, len(indices))
	for j, i := range indices {
		out[j] = c.Values[i]
	}
	return NewBoolColumn(c.name, out)
}

func (c *BoolColumn) clone() Column {
	return NewBoolColumn(c.name, append([]bool(nil), c.Values...))
}

// TimeColumn holds instants, normalised to UTC.
type TimeColumn struct {
	name   string
	Values []time.Time
}

func NewTimeColumn(name string, values []time.Time) *TimeColumn {
	return &TimeColumn{name: name, Values: values}
}

func (c *TimeColumn) Name() string { return c.name }
func (c *TimeColumn) Kind() Kind   { return KindTime }
func (c *TimeColumn) Len() int     { return len(c.Values) }

func (c *TimeColumn) Format(i int) string {
	if c.Values[i].IsZero() {
		return "NaT"
	}
	return c.Values[i].Format("2006-01-02 15:04:05Z07:00")
}

func (c *TimeColumn) take(indices []int) Column {
	out := make([]time.Time, len(indices))
	for j, i := range indices {
		out[j] = c.Values[i]
	}
	return NewTimeColumn(c.name, out)
}

func (c *TimeColumn) clone() Column {
	return NewTimeColumn(c.name, append([]time.Time(nil), c.Values...))
}

