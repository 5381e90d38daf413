package primitive

import (
	"context"

	"github.com/turbot/flowci/internal/container"
	"github.com/turbot/flowci/internal/pipeline"
)

// ContainerBackend is an execution client able to run containers, such as
// engine.Client.
type ContainerBackend interface {
	pipeline.ExecutionClient
	Path() string
	Container(step string, image string) (*container.Container, error)
	RunContainer(ctx context.Context, ctr *container.Container) (*container.ContainerRun, error)
}
