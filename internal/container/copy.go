package container

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"

	"github.com/turbot/flowci/internal/fperr"
)

// maxOutputFileSize caps files read back from a container.
const maxOutputFileSize = 10 * 1024 * 1024

func (d Directory) Validate() error {
	if d.Source == "" {
		return fperr.ConfigurationWithMessage("directory source is required")
	}
	if !path.IsAbs(d.Target) || path.Clean(d.Target) == "/" {
		return fperr.ConfigurationWithMessage(fmt.Sprintf("directory target %q must be an absolute path below /", d.Target))
	}
	return nil
}

// TarOptions builds the archive options copying the source directory to the
// target path when the archive is extracted at "/". Exclude patterns are
// relative to the source directory.
func (d Directory) TarOptions(excluded []string) (string, *archive.TarOptions, error) {
	source, err := filepath.Abs(d.Source)
	if err != nil {
		return "", nil, fperr.ConfigurationWithMessage(fmt.Sprintf("invalid directory source %s: %s", d.Source, err.Error()))
	}

	parent := filepath.Dir(source)
	base := filepath.Base(source)
	target := strings.TrimPrefix(path.Clean(d.Target), "/")

	var patterns []string
	for _, p := range append(append([]string{}, excluded...), d.Exclude...) {
		patterns = append(patterns, filepath.Join(base, p))
	}

	return parent, &archive.TarOptions{
		Compression:     archive.Uncompressed,
		IncludeFiles:    []string{base},
		ExcludePatterns: patterns,
		RebaseNames:     map[string]string{base: target},
	}, nil
}

// CopyDirectory copies a host directory into a created container.
func (c *Container) CopyDirectory(ctx context.Context, containerID string, d Directory) error {
	info, err := os.Stat(d.Source)
	if err != nil {
		return fperr.ConfigurationWithMessage(fmt.Sprintf("unable to read directory %s: %s", d.Source, err.Error()))
	}
	if !info.IsDir() {
		return fperr.ConfigurationWithMessage(fmt.Sprintf("%s is not a directory", d.Source))
	}

	srcPath, options, err := d.TarOptions(c.ExcludedFiles)
	if err != nil {
		return err
	}

	reader, err := archive.TarWithOptions(srcPath, options)
	if err != nil {
		return fperr.BackendWithMessage(fmt.Sprintf("unable to archive %s: %s", d.Source, err.Error()))
	}
	defer reader.Close()

	err = c.dockerClient.CLI.CopyToContainer(ctx, containerID, "/", reader, types.CopyToContainerOptions{})
	if err != nil {
		return fperr.BackendWithMessage(fmt.Sprintf("unable to copy %s to %s: %s", d.Source, d.Target, err.Error()))
	}
	return nil
}

// ReadFile returns the content of a file in the container. A missing file is
// reported with ok false and no error.
func (c *Container) ReadFile(ctx context.Context, containerID string, filePath string) (string, bool, error) {
	reader, _, err := c.dockerClient.CLI.CopyFromContainer(ctx, containerID, filePath)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", false, nil
		}
		return "", false, fperr.BackendWithMessage(fmt.Sprintf("unable to read %s: %s", filePath, err.Error()))
	}
	defer reader.Close()

	return ReadFirstFile(reader)
}

// ReadFirstFile returns the content of the first regular file of a tar
// stream, as produced by the engine archive endpoint.
func ReadFirstFile(reader io.Reader) (string, bool, error) {
	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return "", false, nil
		}
		if err != nil {
			return "", false, fperr.BackendWithMessage("invalid archive: " + err.Error())
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		content, err := io.ReadAll(io.LimitReader(tr, maxOutputFileSize))
		if err != nil {
			return "", false, fperr.BackendWithMessage("invalid archive: " + err.Error())
		}
		return string(content), true, nil
	}
}
