package printers

import (
	"context"
	"io"

	"github.com/turbot/flowci/internal/sanitize"
	"github.com/turbot/flowci/internal/types"
)

// PrettyPrinter renders Showable resources and falls back to a table for
// everything else.
type PrettyPrinter struct {
	Sanitizer    *sanitize.Sanitizer
	ColorEnabled bool
}

func (p PrettyPrinter) PrintResource(ctx context.Context, r types.PrintableResource, writer io.Writer) error {
	s, ok := r.(types.Showable)
	if !ok {
		return TablePrinter{Sanitizer: p.Sanitizer}.PrintResource(ctx, r, writer)
	}

	out := s.Show(types.RenderOptions{
		ColorEnabled: p.ColorEnabled,
		Sanitizer:    p.Sanitizer,
	})
	_, err := io.WriteString(writer, out)
	return err
}
