package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/turbot/pipe-fittings/perr"

	"github.com/turbot/flowci/internal/cache"
	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/fqueue"
)

// DockerClient represents a connection to Docker.
type DockerClient struct {
	CLI *client.Client

	// If true, intermediate images will be removed when cleaning up
	// images. This keeps the environment clean, but makes the next run
	// of a pipeline slower. Default is true.
	PruneImages bool

	// PullTimeout bounds a single image pull.
	PullTimeout time.Duration

	ctx           context.Context
	minApiVersion string
	imageCache    *cache.InMemoryCache
	pulls         *fqueue.Manager
}

// Option defines a function signature for configuring the Docker client.
type Option func(*DockerClient) error

// WithContext configures the Docker client with a specific context.
func WithContext(ctx context.Context) Option {
	return func(c *DockerClient) error {
		c.ctx = ctx
		return nil
	}
}

func WithPruneImages(prune bool) Option {
	return func(c *DockerClient) error {
		c.PruneImages = prune
		return nil
	}
}

func WithPullTimeout(timeout time.Duration) Option {
	return func(c *DockerClient) error {
		c.PullTimeout = timeout
		return nil
	}
}

// WithPingTest configures the Docker client to perform a ping test to ensure
// the Docker service is running and available.
func WithPingTest() Option {
	return func(c *DockerClient) error {
		pingCtx, cancel := context.WithTimeout(c.context(), time.Second*5)
		defer cancel()
		_, err := c.CLI.Ping(pingCtx)
		if err != nil {
			return fperr.BackendWithMessage("docker is not available: " + err.Error())
		}
		return nil
	}
}

// WithMinApiVersion fails when the daemon speaks an older API than
// minVersion.
func WithMinApiVersion(minVersion string) Option {
	return func(c *DockerClient) error {
		c.minApiVersion = minVersion

		pingCtx, cancel := context.WithTimeout(c.context(), time.Second*5)
		defer cancel()
		ping, err := c.CLI.Ping(pingCtx)
		if err != nil {
			return fperr.BackendWithMessage("docker is not available: " + err.Error())
		}
		return CheckApiVersion(ping.APIVersion, minVersion)
	}
}

// New creates a new Docker client with the provided options.
func New(options ...Option) (*DockerClient, error) {

	// Create Docker client
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fperr.BackendWithMessage("unable to create docker client: " + err.Error())
	}

	dc := &DockerClient{
		CLI:         cli,
		PruneImages: true,
		PullTimeout: time.Duration(constants.DefaultDockerPullTimeout) * time.Second,
		pulls:       fqueue.NewManager(),
	}

	for _, option := range options {
		if err := option(dc); err != nil {
			return nil, err
		}
	}

	if dc.ctx == nil {
		dc.ctx = context.Background()
	}

	dc.imageCache = cache.GetImageCache()

	return dc, nil
}

func (dc *DockerClient) context() context.Context {
	if dc.ctx == nil {
		return context.Background()
	}
	return dc.ctx
}

// CheckApiVersion compares the daemon API version with the required minimum.
func CheckApiVersion(serverVersion string, minVersion string) error {
	if minVersion == "" {
		return nil
	}

	required, err := semver.NewVersion(minVersion)
	if err != nil {
		return fperr.ConfigurationWithMessage(fmt.Sprintf("invalid minimum docker API version %s: %s", minVersion, err.Error()))
	}

	actual, err := semver.NewVersion(serverVersion)
	if err != nil {
		return fperr.BackendWithMessage(fmt.Sprintf("docker reported an invalid API version %s", serverVersion))
	}

	if actual.LessThan(required) {
		return fperr.BackendWithMessage(fmt.Sprintf("docker API version %s is older than the required %s", serverVersion, minVersion))
	}
	return nil
}

func (dc *DockerClient) ImageExists(ctx context.Context, imageName string) (bool, error) {
	// Inspect the image to check if it exists
	_, _, err := dc.CLI.ImageInspectWithRaw(ctx, imageName)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fperr.BackendWithMessage(fmt.Sprintf("error checking for image %s: %v", imageName, err.Error()))
	}
	return true, nil
}

func (dc *DockerClient) ImagePull(ctx context.Context, imageName string) error {
	pullCtx, cancel := context.WithTimeout(ctx, dc.PullTimeout)
	defer cancel()

	resp, err := dc.CLI.ImagePull(pullCtx, imageName, types.ImagePullOptions{})
	if err != nil {
		return fperr.BackendWithMessage(fmt.Sprintf("unable to pull image %s: %s", imageName, err.Error()))
	}
	defer resp.Close()

	// the pull is only complete once the progress stream is drained
	_, err = io.Copy(io.Discard, resp)
	if err != nil {
		return fperr.BackendWithMessage(fmt.Sprintf("unable to pull image %s: %s", imageName, err.Error()))
	}

	return nil
}

// EnsureImage makes sure imageName is present on the daemon. Concurrent
// requests for the same image share one pull.
func (dc *DockerClient) EnsureImage(ctx context.Context, imageName string) error {
	if dc.imageCache != nil {
		if _, ok := dc.imageCache.Get(imageName); ok {
			return nil
		}
	}

	exists, err := dc.ImageExists(ctx, imageName)
	if err != nil {
		return err
	}

	if !exists {
		start := time.Now()
		// the pull outlives the caller that started it, other callers may be waiting
		err = <-dc.pulls.Get(imageName).Submit(func() error {
			return dc.ImagePull(dc.context(), imageName)
		})
		if err != nil {
			return err
		}
		slog.Info("image pulled", "image", imageName, "elapsed", time.Since(start).String())
	}

	if dc.imageCache != nil {
		dc.imageCache.SetWithTTL(imageName, true, time.Hour)
	}
	return nil
}

// ForgetImage drops imageName from the present-image cache.
func (dc *DockerClient) ForgetImage(imageName string) {
	if dc.imageCache != nil {
		dc.imageCache.Delete(imageName)
	}
}

// CleanupArtifacts deletes all containers and images created by flowci.
func (dc *DockerClient) CleanupArtifacts(ctx context.Context) error {
	return dc.CleanupArtifactsForLabel(ctx, constants.LabelType, "")
}

type CleanupArtifactsOptions struct {
	SkipLatest bool
}

type CleanupArtifactsOption func(*CleanupArtifactsOptions)

func WithSkipLatest(skipLatest bool) CleanupArtifactsOption {
	return func(options *CleanupArtifactsOptions) {
		options.SkipLatest = skipLatest
	}
}

// LabelFilter matches every object carrying key, or key=value when value is
// set.
func LabelFilter(key string, value string) filters.Args {
	labelFilter := filters.NewArgs()
	if value == "" {
		labelFilter.Add("label", key)
	} else {
		labelFilter.Add("label", fmt.Sprintf("%s=%s", key, value))
	}
	return labelFilter
}

// CleanupArtifactsForLabel deletes the containers and images labelled
// key=value.
func (dc *DockerClient) CleanupArtifactsForLabel(ctx context.Context, key string, value string, opts ...CleanupArtifactsOption) error {
	err := dc.deleteContainersWithLabel(ctx, key, value, opts...)
	if err != nil {
		return fperr.BackendWithMessage(fmt.Sprintf("failed to cleanup flowci containers: %v", err))
	}
	err = dc.deleteImagesWithLabel(ctx, key, value, opts...)
	if err != nil {
		return fperr.BackendWithMessage(fmt.Sprintf("failed to cleanup flowci images: %v", err))
	}
	return nil
}

// deleteContainersWithLabel deletes all containers with the specified label.
func (dc *DockerClient) deleteContainersWithLabel(ctx context.Context, key string, value string, opts ...CleanupArtifactsOption) error {

	// Options
	cleanupOptions := &CleanupArtifactsOptions{
		SkipLatest: false,
	}
	for _, opt := range opts {
		opt(cleanupOptions)
	}

	// Convenience
	cli := dc.CLI

	listOptions := types.ContainerListOptions{
		// Include both running and stopped containers
		All:     true,
		Filters: LabelFilter(key, value),
	}

	containers, err := cli.ContainerList(ctx, listOptions)
	if err != nil {
		return perr.InternalWithMessage(fmt.Sprintf("failed to list containers: %s", err))
	}

	// Iterate through the containers and stop/remove them
	for _, c := range containers {
		if cleanupOptions.SkipLatest && strings.HasSuffix(c.Image, ":latest") {
			continue
		}
		// Gracefully stop the container if it's running
		if c.State == "running" {
			err = cli.ContainerStop(ctx, c.ID, container.StopOptions{})
			if err != nil {
				slog.Warn("failed to stop container", "containerID", c.ID, "error", err)
			} else {
				slog.Info("container stopped", "containerID", c.ID)
			}
		}
		// Remove the container
		err = cli.ContainerRemove(ctx, c.ID, types.ContainerRemoveOptions{Force: true})
		if err != nil {
			slog.Warn("failed to remove container", "containerID", c.ID, "error", err)
		} else {
			slog.Info("container deleted", "containerID", c.ID)
		}
	}

	return nil
}

// deleteImagesWithLabel deletes all images with the specified label.
func (dc *DockerClient) deleteImagesWithLabel(ctx context.Context, key string, value string, opts ...CleanupArtifactsOption) error {

	// Options
	cleanupOptions := &CleanupArtifactsOptions{
		SkipLatest: false,
	}
	for _, opt := range opts {
		opt(cleanupOptions)
	}

	listOptions := types.ImageListOptions{
		// Do not include intermediate images in the results, since
		// they are removed through the PruneChildren option below.
		All:     false,
		Filters: LabelFilter(key, value),
	}

	images, err := dc.CLI.ImageList(ctx, listOptions)
	if err != nil {
		return perr.InternalWithMessage(fmt.Sprintf("failed to list images: %s", err))
	}

	for _, img := range images {
		if cleanupOptions.SkipLatest && hasLatestTag(img.RepoTags) {
			continue
		}
		imgRemoveOpts := types.ImageRemoveOptions{
			// Just in case, since we should only be deleting images that
			// are not in use.
			Force:         true,
			PruneChildren: dc.PruneImages,
		}
		_, err = dc.CLI.ImageRemove(ctx, img.ID, imgRemoveOpts)
		if err != nil {
			slog.Warn("failed to remove image", "imageID", img.ID, "error", err)
		} else {
			slog.Info("image deleted", "imageID", img.ID)
		}
		dc.ForgetImage(img.ID)
	}

	return nil
}

func hasLatestTag(tags []string) bool {
	for _, tag := range tags {
		if strings.HasSuffix(tag, ":latest") {
			return true
		}
	}
	return false
}
