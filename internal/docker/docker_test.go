package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turbot/flowci/internal/fperr"
)

func TestCheckApiVersion(t *testing.T) {
	tests := []struct {
		server  string
		min     string
		code    string
		wantErr bool
	}{
		{server: "1.43", min: "1.41"},
		{server: "1.41", min: "1.41"},
		{server: "1.43", min: ""},
		{server: "1.40", min: "1.41", code: fperr.ErrorCodeBackend, wantErr: true},
		{server: "garbage", min: "1.41", code: fperr.ErrorCodeBackend, wantErr: true},
		{server: "1.43", min: "one", code: fperr.ErrorCodeConfiguration, wantErr: true},
	}

	for _, tt := range tests {
		err := CheckApiVersion(tt.server, tt.min)
		if !tt.wantErr {
			assert.NoError(t, err, "%s >= %s", tt.server, tt.min)
			continue
		}
		assert.Error(t, err, "%s >= %s", tt.server, tt.min)
		assert.True(t, fperr.HasCode(err, tt.code), "%s >= %s: %v", tt.server, tt.min, err)
	}
}

func TestLabelFilter(t *testing.T) {
	assert := assert.New(t)

	f := LabelFilter("io.flowci.type", "")
	assert.Equal([]string{"io.flowci.type"}, f.Get("label"))

	f = LabelFilter("io.flowci.run", "run_123")
	assert.Equal([]string{"io.flowci.run=run_123"}, f.Get("label"))
}

func TestHasLatestTag(t *testing.T) {
	assert.True(t, hasLatestTag([]string{"alpine:3.18", "alpine:latest"}))
	assert.False(t, hasLatestTag([]string{"alpine:3.18"}))
	assert.False(t, hasLatestTag(nil))
}
