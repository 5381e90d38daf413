package types

import (
	"fmt"
	"strings"

	"github.com/thediveo/enumflag/v2"

	"github.com/turbot/flowci/internal/fperr"
)

// OutputMode is the value of the --output flag.
type OutputMode enumflag.Flag

const (
	OutputModePretty OutputMode = iota
	OutputModePlain
	OutputModeYaml
	OutputModeJson
)

var OutputModeIds = map[OutputMode][]string{
	OutputModePretty: {"pretty"},
	OutputModePlain:  {"plain"},
	OutputModeYaml:   {"yaml"},
	OutputModeJson:   {"json"},
}

func (m OutputMode) String() string {
	if ids, ok := OutputModeIds[m]; ok {
		return ids[0]
	}
	return "unknown"
}

// ParseOutputMode maps a configured output name to its mode.
func ParseOutputMode(name string) (OutputMode, error) {
	for mode, ids := range OutputModeIds {
		for _, id := range ids {
			if strings.EqualFold(id, name) {
				return mode, nil
			}
		}
	}
	return OutputModePretty, fperr.ConfigurationWithMessage(fmt.Sprintf("unknown output %s", name))
}
