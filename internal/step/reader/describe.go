package reader

import (
	"fmt"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	preader "github.com/xitongsys/parquet-go/reader"

	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

// ColumnInfo names one column and its stored type.
type ColumnInfo struct {
	Name string
	Type string
}

// Description is the schema and shape of a data file.
type Description struct {
	Path    string
	Format  string
	Rows    int64
	Columns []ColumnInfo
}

// ColumnNames returns the column names in file order.
func (d *Description) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

func (d *Description) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", d.Path, d.Format)
	fmt.Fprintf(&b, "Shape: (%d, %d)\n", d.Rows, len(d.Columns))
	b.WriteString("Schema:\n")
	for _, c := range d.Columns {
		fmt.Fprintf(&b, "  %s: %s\n", c.Name, c.Type)
	}
	fmt.Fprintf(&b, "Columns: [%s]\n", strings.Join(d.ColumnNames(), ", "))
	return b.String()
}

// Describe reads only the metadata of a Parquet file, or parses a CSV file, and reports its schema.
func Describe(path, format string) (*Description, error) {
	switch format = FormatOf(format, path); format {
	case config.FormatParquet:
		return describeParquet(path)
	case config.FormatCSV:
		return describeCSV(path)
	default:
		return nil, exception.NewBatchErrorf(moduleName, "unsupported input format '%s'", format)
	}
}

func describeParquet(path string) (*Description, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to open parquet file '%s'", path), err, false, false)
	}
	defer fr.Close()

	pr, err := preader.NewParquetColumnReader(fr, 1)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to read parquet footer of '%s'", path), err, false, false)
	}
	defer pr.ReadStop()

	_, fields := footerFields(pr.Footer)
	d := &Description{Path: path, Format: config.FormatParquet, Rows: pr.GetNumRows()}
	for _, f := range fields {
		typ := f.element.GetType().String()
		if f.element.ConvertedType != nil {
			typ += "/" + f.element.ConvertedType.String()
		}
		if f.element.GetRepetitionType() == parquet.FieldRepetitionType_OPTIONAL {
			typ += " (nullable)"
		}
		d.Columns = append(d.Columns, ColumnInfo{Name: f.name, Type: typ})
	}
	return d, nil
}

func describeCSV(path string) (*Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to open csv file '%s'", path), err, false, false)
	}
	defer f.Close()

	df, err := loadDataFrame(f)
	if err != nil {
		return nil, err
	}
	d := &Description{Path: path, Format: config.FormatCSV, Rows: int64(df.Nrow())}
	types := df.Types()
	for i, name := range df.Names() {
		d.Columns = append(d.Columns, ColumnInfo{Name: name, Type: string(types[i])})
	}
	return d, nil
}
