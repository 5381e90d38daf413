package engine

import (
	"context"
	"sync"

	"github.com/turbot/flowci/internal/config"
	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/container"
	"github.com/turbot/flowci/internal/docker"
	"github.com/turbot/flowci/internal/fplog"
	"github.com/turbot/flowci/internal/pipeline"
)

// Client is the execution backend of a run: a docker connection plus the
// scope path of the pipeline node it was handed to. Scoped clients share the
// run's bookkeeping.
type Client struct {
	path  string
	runId string

	dockerClient *docker.DockerClient
	config       *config.Configuration
	run          *runArtifacts
}

type runArtifacts struct {
	lock       sync.Mutex
	containers int
	images     []string
}

func NewClient(runId string, dockerClient *docker.DockerClient, cfg *config.Configuration) *Client {
	return &Client{
		runId:        runId,
		dockerClient: dockerClient,
		config:       cfg,
		run:          &runArtifacts{},
	}
}

// Scope returns a client nested under name. It never blocks.
func (c *Client) Scope(name string) pipeline.ExecutionClient {
	return &Client{
		path:         pipeline.ScopePath(c.path, name),
		runId:        c.runId,
		dockerClient: c.dockerClient,
		config:       c.config,
		run:          c.run,
	}
}

func (c *Client) Path() string {
	return c.path
}

func (c *Client) RunId() string {
	return c.runId
}

// Labels identify the objects a step creates on the engine.
func (c *Client) Labels(step string) map[string]string {
	return map[string]string{
		constants.LabelRun:      c.runId,
		constants.LabelPipeline: c.path,
		constants.LabelName:     step,
	}
}

// Container prepares a container for step in this scope.
func (c *Client) Container(step string, image string) (*container.Container, error) {
	ctr, err := container.NewContainer(
		container.WithName(step),
		container.WithImage(image),
		container.WithDockerClient(c.dockerClient),
	)
	if err != nil {
		return nil, err
	}
	c.prepare(ctr)
	return ctr, nil
}

func (c *Client) prepare(ctr *container.Container) {
	for k, v := range c.Labels(ctr.Name) {
		ctr.Labels[k] = v
	}
	if c.config != nil {
		ctr.RetainArtifacts = c.config.RetainArtifacts
		ctr.ExcludedFiles = c.config.ExcludedFiles
	}
	ctr.SetDockerClient(c.dockerClient)
}

// RunContainer labels ctr for this scope and runs it.
func (c *Client) RunContainer(ctx context.Context, ctr *container.Container) (*container.ContainerRun, error) {
	c.prepare(ctr)

	run, err := ctr.Run(ctx)
	if run != nil {
		c.run.lock.Lock()
		c.run.containers++
		if run.ImageID != "" {
			c.run.images = append(c.run.images, run.ImageID)
		}
		c.run.lock.Unlock()
	}
	return run, err
}

// Images returns the images committed during the run.
func (c *Client) Images() []string {
	c.run.lock.Lock()
	defer c.run.lock.Unlock()
	images := make([]string, len(c.run.images))
	copy(images, c.run.images)
	return images
}

// Cleanup removes the containers and images of the run unless artifacts are
// retained.
func (c *Client) Cleanup(ctx context.Context) error {
	if c.config != nil && c.config.RetainArtifacts {
		fplog.Logger(ctx).Info("retaining run artifacts", "run", c.runId, "images", len(c.Images()))
		return nil
	}
	if c.dockerClient == nil {
		return nil
	}

	c.run.lock.Lock()
	containers := c.run.containers
	c.run.lock.Unlock()
	fplog.Logger(ctx).Debug("cleaning up run artifacts", "run", c.runId, "containers", containers)

	return c.dockerClient.CleanupArtifactsForLabel(ctx, constants.LabelRun, c.runId)
}
