package printers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/turbot/flowci/internal/sanitize"
	"github.com/turbot/flowci/internal/types"
)

// Inspired by Kubernetes
// TablePrinter prints the table form of a resource as aligned columns.
type TablePrinter struct {
	Sanitizer *sanitize.Sanitizer
}

func (p TablePrinter) PrintResource(_ context.Context, r types.PrintableResource, writer io.Writer) error {
	table, err := r.GetTable()
	if err != nil {
		return err
	}
	return p.PrintTable(table, writer)
}

func (p TablePrinter) PrintTable(table types.Table, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 1, 1, 4, ' ', tabwriter.TabIndent)

	headers := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		headers[i] = c.Name
	}
	if err := writeRow(w, headers); err != nil {
		return err
	}

	for _, row := range table.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			verb := "%v"
			if i < len(table.Columns) {
				verb = table.Columns[i].Formatter()
			}
			cells[i] = p.Sanitizer.SanitizeString(fmt.Sprintf(verb, cell))
		}
		if err := writeRow(w, cells); err != nil {
			return err
		}
	}

	return w.Flush()
}

func writeRow(w io.Writer, cells []string) error {
	//nolint:forbidigo // this is how the tabwriter works
	_, err := fmt.Fprintln(w, strings.Join(cells, "\t"))
	return err
}
