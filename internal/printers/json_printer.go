package printers

import (
	"context"
	"io"

	"github.com/turbot/flowci/internal/color"
	"github.com/turbot/flowci/internal/sanitize"
	"github.com/turbot/flowci/internal/types"
)

type JsonPrinter struct {
	Sanitizer    *sanitize.Sanitizer
	ColorEnabled bool
}

func (p JsonPrinter) PrintResource(_ context.Context, r types.PrintableResource, writer io.Writer) error {
	s, err := color.NewJsonFormatter(p.ColorEnabled).Marshal(r.GetItems(p.Sanitizer))
	if err != nil {
		return err
	}
	_, err = writer.Write(append(s, '\n'))
	return err
}
