package container

import (
	"io"
	"strings"

	"github.com/docker/docker/pkg/stdcopy"
)

const (
	StdoutType = "stdout"
	StderrType = "stderr"
)

// Output keeps the frames of a container log in arrival order so stdout and
// stderr can be read apart or interleaved.
type Output struct {
	Lines []OutputLine
}

type OutputLine struct {
	Stream string `json:"stream"`
	Line   string `json:"line"`
}

func NewOutput() *Output {
	return &Output{Lines: []OutputLine{}}
}

// streamWriter receives one multiplexed frame per Write.
type streamWriter struct {
	output *Output
	stream string
}

func (w streamWriter) Write(p []byte) (int, error) {
	w.output.Lines = append(w.output.Lines, OutputLine{Stream: w.stream, Line: string(p)})
	return len(p), nil
}

// FromDockerLogsReader demultiplexes the log stream of a container started
// without a tty. A frame cut off by the end of the stream is dropped.
func (o *Output) FromDockerLogsReader(reader io.Reader) error {
	_, err := stdcopy.StdCopy(streamWriter{output: o, stream: StdoutType}, streamWriter{output: o, stream: StderrType}, reader)
	return err
}

func (o *Output) Combined() string {
	var sb strings.Builder
	for _, line := range o.Lines {
		sb.WriteString(line.Line)
	}
	return sb.String()
}

func (o *Output) Stdout() string {
	return o.stream(StdoutType)
}

func (o *Output) Stderr() string {
	return o.stream(StderrType)
}

func (o *Output) stream(streamType string) string {
	var sb strings.Builder
	for _, line := range o.Lines {
		if line.Stream == streamType {
			sb.WriteString(line.Line)
		}
	}
	return sb.String()
}
