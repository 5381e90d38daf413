package types

import "github.com/turbot/flowci/internal/sanitize"

// PrintableResource is anything the CLI prints in one of the output modes.
type PrintableResource interface {
	// GetItems returns the value marshalled by the json and yaml printers.
	GetItems(sanitizer *sanitize.Sanitizer) any
	GetTable() (Table, error)
}

// Showable resources have a human oriented rendering used by the pretty
// printer. Resources that are not Showable are printed as a table.
type Showable interface {
	Show(opts RenderOptions) string
}

type RenderOptions struct {
	ColorEnabled bool
	Sanitizer    *sanitize.Sanitizer
}
