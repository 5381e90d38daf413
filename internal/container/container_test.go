package container

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/pkg/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/fperr"
)

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	c, err := NewContainer(WithName("build"), WithImage("golang:1.21"))
	require.NoError(t, err)
	assert.NoError(c.Validate())

	c.Directories = []Directory{{Source: ".", Target: "/"}}
	assert.True(fperr.IsConfigurationError(c.Validate()))

	c.Directories = []Directory{{Source: ".", Target: "workspace"}}
	assert.True(fperr.IsConfigurationError(c.Validate()))

	c.Directories = []Directory{{Source: ".", Target: "/workspace"}}
	assert.NoError(c.Validate())

	c.Image = ""
	assert.True(fperr.IsConfigurationError(c.Validate()))
}

func TestGetEnvIsSorted(t *testing.T) {
	c, err := NewContainer()
	require.NoError(t, err)

	c.Env = map[string]string{"ZED": "1", "ALPHA": "2", "INPUT_NODE_VERSION": "20"}
	assert.Equal(t, []string{"ALPHA=2", "INPUT_NODE_VERSION=20", "ZED=1"}, c.GetEnv())
}

func TestCreateConfig(t *testing.T) {
	assert := assert.New(t)

	c, err := NewContainer(WithName("test"), WithImage("python:3.12"))
	require.NoError(t, err)
	c.Cmd = []string{"pytest"}
	c.Workdir = "/src"
	c.Labels = map[string]string{constants.LabelRun: "run_1", constants.LabelPipeline: "ci.test"}

	cfg := c.createConfig()
	assert.Equal("python:3.12", cfg.Image)
	assert.Equal("/src", cfg.WorkingDir)
	assert.Nil([]string(cfg.Entrypoint))
	assert.Equal(map[string]string{
		constants.LabelType:     constants.LabelTypeContainer,
		constants.LabelName:     "test",
		constants.LabelRun:      "run_1",
		constants.LabelPipeline: "ci.test",
	}, cfg.Labels)

	c.EntryPoint = []string{"/bin/sh", "-c"}
	assert.Equal([]string{"/bin/sh", "-c"}, []string(c.createConfig().Entrypoint))
}

func TestTarOptionsCopyToTarget(t *testing.T) {
	assert := assert.New(t)

	root := filepath.Join(t.TempDir(), "repo")
	for _, f := range []string{"main.go", "src/app.go", ".git/HEAD", "src/build/out.bin"} {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0600))
	}

	d := Directory{Source: root, Target: "/workspace/"}
	srcPath, options, err := d.TarOptions([]string{".git", "**/build"})
	require.NoError(t, err)
	assert.Equal(filepath.Dir(root), srcPath)
	assert.Equal([]string{"repo/.git", "repo/**/build"}, options.ExcludePatterns)

	reader, err := archive.TarWithOptions(srcPath, options)
	require.NoError(t, err)
	defer reader.Close()

	var names []string
	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, header.Name)
	}

	assert.Contains(names, "workspace/main.go")
	assert.Contains(names, "workspace/src/app.go")
	assert.NotContains(names, "workspace/.git/HEAD")
	assert.NotContains(names, "workspace/src/build/out.bin")
}

func TestReadFirstFile(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "out", Typeflag: tar.TypeDir, Mode: 0755}))
	content := "coverage: 87%\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "out/report.txt", Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(content))}))
	_, err := tw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	got, ok, err := ReadFirstFile(&buf)
	require.NoError(t, err)
	assert.True(ok)
	assert.Equal(content, got)

	var empty bytes.Buffer
	require.NoError(t, tar.NewWriter(&empty).Close())
	_, ok, err = ReadFirstFile(&empty)
	assert.NoError(err)
	assert.False(ok)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "héllo", TruncateString("héllo wörld", 5))
	assert.Equal(t, "short", TruncateString("short", 10))
}
