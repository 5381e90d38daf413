package printers

import (
	"context"
	"io"

	"github.com/turbot/flowci/internal/sanitize"
	"github.com/turbot/flowci/internal/types"
)

// Inspired by Kubernetes
//
// ResourcePrinter is an interface that knows how to print runtime objects.
type ResourcePrinter interface {
	// PrintResource receives a runtime object, formats it and prints it to a writer.
	PrintResource(context.Context, types.PrintableResource, io.Writer) error
}

// GetPrinter returns the printer for mode. Output is passed through the
// process sanitizer.
func GetPrinter(mode types.OutputMode, colorEnabled bool) ResourcePrinter {
	sanitizer := sanitize.Instance()
	switch mode {
	case types.OutputModeJson:
		return JsonPrinter{Sanitizer: sanitizer, ColorEnabled: colorEnabled}
	case types.OutputModeYaml:
		return YamlPrinter{Sanitizer: sanitizer, ColorEnabled: colorEnabled}
	case types.OutputModePlain:
		return TablePrinter{Sanitizer: sanitizer}
	}
	return PrettyPrinter{Sanitizer: sanitizer, ColorEnabled: colorEnabled}
}
