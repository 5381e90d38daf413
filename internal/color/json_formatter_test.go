package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonFormatterWithoutColor(t *testing.T) {
	out, err := NewJsonFormatter(false).Marshal(map[string]any{"step": "build", "exit_code": 0})
	require.NoError(t, err)

	assert.NotContains(t, string(out), "\x1b[")
	assert.Contains(t, string(out), "\n  \"step\": \"build\"")
}
