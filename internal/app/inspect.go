package app

import (
	"fmt"
	"io"

	"github.com/tigerroll/stationcast/internal/step/reader"
)

// Inspect writes the schema, shape and column list of a data file to w,
// followed by a preview of its first rows when rows is positive.
func Inspect(w io.Writer, path, format string, rows int) error {
	desc, err := reader.Describe(path, format)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, desc.String()); err != nil {
		return err
	}
	if rows <= 0 {
		return nil
	}

	tbl, err := reader.ReadFile(path, format, nil)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Head(%d):\n%s", rows, tbl.Head(rows))
	return err
}
