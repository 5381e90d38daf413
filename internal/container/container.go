package container

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/turbot/pipe-fittings/perr"

	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/docker"
	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/fplog"
)

const (
	StatusCreated  = "created"
	StatusCopied   = "copied"
	StatusStarted  = "started"
	StatusFinished = "finished"
	StatusLogged   = "logged"
	StatusCommited = "committed"
	StatusRemoved  = "removed"
)

// Directory is a host directory copied into the container before it starts.
type Directory struct {
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Exclude []string `json:"exclude,omitempty"`
}

// Container is one unit of work on the docker engine: a container created
// from Image, given Directories, started, waited for and optionally committed
// to a new image.
type Container struct {

	// Configuration
	Name            string            `json:"name"`
	Image           string            `json:"image"`
	Cmd             []string          `json:"cmd"`
	Env             map[string]string `json:"env"`
	EntryPoint      []string          `json:"entrypoint"`
	Workdir         string            `json:"workdir,omitempty"`
	User            string            `json:"user,omitempty"`
	Labels          map[string]string `json:"labels"`
	Directories     []Directory       `json:"directories,omitempty"`
	OutputFiles     []string          `json:"output_files,omitempty"`
	Commit          bool              `json:"commit"`
	RetainArtifacts bool              `json:"retain_artifacts"`
	ExcludedFiles   []string          `json:"excluded_files,omitempty"`

	// Runtime information
	CreatedAt *time.Time               `json:"created_at,omitempty"`
	UpdatedAt *time.Time               `json:"updated_at,omitempty"`
	Runs      map[string]*ContainerRun `json:"runs"`

	// Internal
	dockerClient *docker.DockerClient
}

type ContainerRun struct {
	ContainerID string            `json:"container_id"`
	Status      string            `json:"status"`
	ExitCode    int               `json:"exit_code"`
	Stdout      string            `json:"stdout"`
	Stderr      string            `json:"stderr"`
	Combined    string            `json:"combined"`
	Files       map[string]string `json:"files,omitempty"`
	ImageID     string            `json:"image_id,omitempty"`
}

// ContainerOption defines a function signature for configuring the container.
type ContainerOption func(*Container) error

// WithDockerClient configures the Docker client.
func WithDockerClient(client *docker.DockerClient) ContainerOption {
	return func(c *Container) error {
		c.dockerClient = client
		return nil
	}
}

func WithName(name string) ContainerOption {
	return func(c *Container) error {
		c.Name = name
		return nil
	}
}

func WithImage(image string) ContainerOption {
	return func(c *Container) error {
		c.Image = image
		return nil
	}
}

// NewContainer creates a new Container with the provided options.
func NewContainer(options ...ContainerOption) (*Container, error) {

	now := time.Now()

	fc := &Container{
		CreatedAt:  &now,
		Cmd:        []string{},
		Env:        map[string]string{},
		Labels:     map[string]string{},
		Runs:       map[string]*ContainerRun{},
		EntryPoint: []string{},
	}

	for _, option := range options {
		if err := option(fc); err != nil {
			return nil, err
		}
	}

	return fc, nil
}

func (c *Container) SetDockerClient(client *docker.DockerClient) {
	c.dockerClient = client
}

// GetEnv returns the environment in KEY=value form, sorted by key.
func (c *Container) GetEnv() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, c.Env[k]))
	}
	return env
}

// SetUpdatedAt sets the updated at time.
func (c *Container) SetUpdatedAt() {
	now := time.Now()
	c.UpdatedAt = &now
}

// Validate validates the container config.
func (c *Container) Validate() error {

	if c.Name == "" {
		return fperr.ConfigurationWithMessage("name required for container")
	}

	if c.Image == "" {
		return fperr.ConfigurationWithMessage("image required for container: " + c.Name)
	}

	for _, d := range c.Directories {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Container) SetRunStatus(containerID string, newStatus string) {
	if c.Runs[containerID] == nil {
		c.Runs[containerID] = &ContainerRun{
			ContainerID: containerID,
		}
	}
	c.Runs[containerID].Status = newStatus
	c.SetUpdatedAt()
}

func (c *Container) createConfig() *container.Config {
	labels := map[string]string{
		constants.LabelType: constants.LabelTypeContainer,
		constants.LabelName: c.Name,
	}
	for k, v := range c.Labels {
		labels[k] = v
	}

	createConfig := &container.Config{
		Image:      c.Image,
		Cmd:        c.Cmd,
		Labels:     labels,
		Env:        c.GetEnv(),
		WorkingDir: c.Workdir,
		User:       c.User,

		// Docker prefixes every log frame with a stream header when there is
		// no tty, see FromDockerLogsReader.
		Tty:          false,
		OpenStdin:    false,
		AttachStdin:  false,
		AttachStdout: false,
		AttachStderr: false,
	}

	// Only override Entrypoint if we pass content to c.EntryPoint
	if len(c.EntryPoint) != 0 {
		createConfig.Entrypoint = c.EntryPoint
	}
	return createConfig
}

// Run executes the container to completion. A non-zero exit code is reported
// in the returned run, not as an error; errors are engine failures.
func (c *Container) Run(ctx context.Context) (*ContainerRun, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.dockerClient == nil {
		return nil, perr.InternalWithMessage("container " + c.Name + " has no docker client")
	}

	logger := fplog.Logger(ctx)
	start := time.Now()

	// Pull the Docker image if it's not already available
	imageStart := time.Now()
	err := c.dockerClient.EnsureImage(ctx, c.Image)
	logger.Debug("image ensure", "elapsed", time.Since(imageStart), "image", c.Image)
	if err != nil {
		return nil, err
	}

	cli := c.dockerClient.CLI

	containerCreateStart := time.Now()
	containerResp, err := cli.ContainerCreate(ctx, c.createConfig(), &container.HostConfig{}, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return nil, fperr.BackendWithMessage(fmt.Sprintf("unable to create container for %s: %s", c.Name, err.Error()))
	}
	containerID := containerResp.ID
	logger.Debug("container create", "elapsed", time.Since(containerCreateStart), "image", c.Image, "container", containerID)
	c.SetRunStatus(containerID, StatusCreated)
	run := c.Runs[containerID]

	// from here on the container exists and must be removed on every path
	defer func() {
		if c.RetainArtifacts {
			logger.Info("retain artifacts", "name", c.Name, "container", containerID)
			return
		}
		// the run context may be cancelled, removal must still happen
		removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := cli.ContainerRemove(removeCtx, containerID, types.ContainerRemoveOptions{Force: true}); err != nil {
			logger.Warn("container remove failed", "container", containerID, "error", err)
			return
		}
		c.SetRunStatus(containerID, StatusRemoved)
	}()

	for _, d := range c.Directories {
		copyStart := time.Now()
		if err := c.CopyDirectory(ctx, containerID, d); err != nil {
			return run, err
		}
		logger.Debug("container copy", "elapsed", time.Since(copyStart), "source", d.Source, "target", d.Target)
	}
	if len(c.Directories) > 0 {
		c.SetRunStatus(containerID, StatusCopied)
	}

	// Start the container
	containerStartStart := time.Now()
	err = cli.ContainerStart(ctx, containerID, types.ContainerStartOptions{})
	logger.Debug("container start", "elapsed", time.Since(containerStartStart), "image", c.Image, "container", containerID)
	if err != nil {
		return run, fperr.BackendWithMessage(fmt.Sprintf("unable to start container for %s: %s", c.Name, err.Error()))
	}
	c.SetRunStatus(containerID, StatusStarted)

	// Wait for the container to finish
	containerWaitStart := time.Now()
	statusCh, errCh := cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return run, fperr.BackendWithMessage(fmt.Sprintf("error waiting for container of %s: %s", c.Name, err.Error()))
		}
	case status := <-statusCh:
		// Set the status code of the container run
		run.ExitCode = int(status.StatusCode)
	}
	logger.Debug("container wait", "elapsed", time.Since(containerWaitStart), "image", c.Image, "container", containerID, "exit_code", run.ExitCode)
	c.SetRunStatus(containerID, StatusFinished)

	// Retrieve the container output
	containerLogsOptions := types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		// Timstamps inject timestamp text into the output, making it hard to parse
		Timestamps: false,
		// Get all logs from the container, not just the last X lines
		Tail: "all",
	}
	reader, err := cli.ContainerLogs(ctx, containerID, containerLogsOptions)
	if err != nil {
		return run, fperr.BackendWithMessage(fmt.Sprintf("unable to read logs of %s: %s", c.Name, err.Error()))
	}
	defer reader.Close()

	o := NewOutput()
	err = o.FromDockerLogsReader(reader)
	if err != nil {
		return run, fperr.BackendWithMessage(fmt.Sprintf("unable to read logs of %s: %s", c.Name, err.Error()))
	}

	run.Stdout = o.Stdout()
	run.Stderr = o.Stderr()
	run.Combined = o.Combined()
	c.SetRunStatus(containerID, StatusLogged)

	if len(c.OutputFiles) > 0 {
		run.Files = map[string]string{}
		for _, path := range c.OutputFiles {
			content, ok, err := c.ReadFile(ctx, containerID, path)
			if err != nil {
				return run, err
			}
			if ok {
				run.Files[path] = content
			}
		}
	}

	if c.Commit {
		imageID, err := c.commit(ctx, containerID)
		if err != nil {
			return run, err
		}
		run.ImageID = imageID
		c.SetRunStatus(containerID, StatusCommited)
	}

	logger.Info("container run", "elapsed", time.Since(start), "name", c.Name, "image", c.Image, "container", containerID, "exit_code", run.ExitCode)
	return run, nil
}

// commit snapshots the finished container into an image carrying the same
// flowci labels.
func (c *Container) commit(ctx context.Context, containerID string) (string, error) {
	labels := map[string]string{}
	for k, v := range c.createConfig().Labels {
		labels[k] = v
	}
	labels[constants.LabelType] = constants.LabelTypeImage

	resp, err := c.dockerClient.CLI.ContainerCommit(ctx, containerID, types.ContainerCommitOptions{
		Comment: "flowci step " + c.Name,
		Config: &container.Config{
			Labels: labels,
		},
	})
	if err != nil {
		return "", fperr.BackendWithMessage(fmt.Sprintf("unable to commit container of %s: %s", c.Name, err.Error()))
	}
	return resp.ID, nil
}

// TruncateString returns at most num runes of str.
func TruncateString(str string, num int) string {
	b := []rune(str)
	if len(b) > num {
		return string(b[:num])
	}
	return str
}
