package color

import (
	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
)

// jsonPalette colors run and definition output.
var jsonPalette = struct {
	key, str, boolean, number, null color.Attribute
}{
	key:     color.FgBlue,
	str:     color.FgGreen,
	boolean: color.FgYellow,
	number:  color.FgCyan,
	null:    color.FgHiBlack,
}

// NewJsonFormatter indents with two spaces. With enabled unset the output is
// plain json suitable for piping.
func NewJsonFormatter(enabled bool) *prettyjson.Formatter {
	f := prettyjson.NewFormatter()
	f.KeyColor = color.New(jsonPalette.key)
	f.StringColor = color.New(jsonPalette.str)
	f.BoolColor = color.New(jsonPalette.boolean)
	f.NumberColor = color.New(jsonPalette.number)
	f.NullColor = color.New(jsonPalette.null)
	f.DisabledColor = !enabled
	f.Indent = 2
	return f
}
