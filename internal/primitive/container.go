package primitive

import (
	"context"
	"fmt"
	"os"

	"github.com/iancoleman/strcase"

	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/container"
	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/fplog"
	"github.com/turbot/flowci/internal/pipeline"
	"github.com/turbot/flowci/internal/sanitize"
)

// ContainerSpec describes a leaf step running one container.
type ContainerSpec struct {
	Name  string `validate:"required"`
	Image string `validate:"required_without=UsePrevious"`

	// UsePrevious starts from the image committed by the previous step.
	// PreviousIndex picks a member when the previous result is a group.
	UsePrevious   bool
	PreviousIndex *int `validate:"omitempty,min=0"`

	Cmd         []string
	Entrypoint  []string
	Env         map[string]string
	Inputs      map[string]string
	Secrets     []string
	Workdir     string
	User        string
	Commit      bool
	Outputs     []string
	Directories []container.Directory
}

// Artifact is the data of a container step result.
type Artifact struct {
	Step        string            `json:"step"`
	Image       string            `json:"image"`
	ContainerID string            `json:"container_id"`
	ImageID     string            `json:"image_id,omitempty"`
	ExitCode    int               `json:"exit_code"`
	Stdout      string            `json:"stdout"`
	Stderr      string            `json:"stderr"`
	Files       map[string]string `json:"files,omitempty"`
}

// InputEnvName converts an input name to the variable it is passed as, e.g.
// "node-version" becomes INPUT_NODE_VERSION.
func InputEnvName(name string) string {
	return constants.EnvInputPrefix + strcase.ToScreamingSnake(name)
}

// ContainerStep builds a leaf step running spec on the client's container
// backend. The step succeeds when the container exits with 0 and fails
// otherwise; engine errors are returned as errors.
func ContainerStep(spec ContainerSpec) pipeline.StepFunc {
	return func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
		backend, ok := client.(ContainerBackend)
		if !ok {
			return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("step %s needs a container backend, got %T", spec.Name, client))
		}

		image, err := spec.baseImage(previous)
		if err != nil {
			return nil, err
		}

		env, err := spec.environment()
		if err != nil {
			return nil, err
		}

		ctr, err := backend.Container(spec.Name, image)
		if err != nil {
			return nil, err
		}
		ctr.Cmd = spec.Cmd
		ctr.EntryPoint = spec.Entrypoint
		ctr.Env = env
		ctr.Workdir = spec.Workdir
		ctr.User = spec.User
		ctr.Commit = spec.Commit
		ctr.OutputFiles = spec.Outputs
		ctr.Directories = spec.Directories

		stepPath := pipeline.ScopePath(backend.Path(), spec.Name)
		fplog.Logger(ctx).Info("container step", "step", stepPath, "image", image)

		run, err := backend.RunContainer(ctx, ctr)
		if err != nil {
			return nil, err
		}

		artifact := &Artifact{
			Step:        stepPath,
			Image:       image,
			ContainerID: run.ContainerID,
			ImageID:     run.ImageID,
			ExitCode:    run.ExitCode,
			Stdout:      run.Stdout,
			Stderr:      run.Stderr,
			Files:       run.Files,
		}

		if run.ExitCode != 0 {
			fplog.Logger(ctx).Warn("container step failed", "step", stepPath, "exit_code", run.ExitCode, "stderr", container.TruncateString(run.Stderr, 256))
			return pipeline.Failure(artifact), nil
		}
		return pipeline.Success(artifact), nil
	}
}

// baseImage resolves the image the container starts from.
func (spec ContainerSpec) baseImage(previous *pipeline.StepResult) (string, error) {
	if !spec.UsePrevious {
		return spec.Image, nil
	}

	if previous == nil {
		return "", fperr.ConfigurationWithMessage(fmt.Sprintf("step %s uses the previous image but there is no previous step", spec.Name))
	}

	source := previous
	if members, ok := previous.Members(); ok {
		if spec.PreviousIndex == nil {
			return "", fperr.ConfigurationWithMessage(fmt.Sprintf("step %s follows a group and must set previous_index", spec.Name))
		}
		idx := *spec.PreviousIndex
		if idx < 0 || idx >= len(members) {
			return "", fperr.ConfigurationWithMessage(fmt.Sprintf("step %s previous_index %d is out of range for a group of %d", spec.Name, idx, len(members)))
		}
		source = members[idx]
	}

	artifact, ok := source.Data.(*Artifact)
	if !ok || artifact == nil {
		return "", fperr.ConfigurationWithMessage(fmt.Sprintf("step %s uses the previous image but the previous step is not a container step", spec.Name))
	}
	if artifact.ImageID == "" {
		return "", fperr.ConfigurationWithMessage(fmt.Sprintf("step %s uses the previous image but %s did not commit one", spec.Name, artifact.Step))
	}
	return artifact.ImageID, nil
}

// environment merges env, inputs and secrets. Secret values are registered
// with the sanitizer so they never reach logs or output.
func (spec ContainerSpec) environment() (map[string]string, error) {
	env := map[string]string{}
	for k, v := range spec.Env {
		env[k] = v
	}
	for k, v := range spec.Inputs {
		env[InputEnvName(k)] = v
	}
	for _, name := range spec.Secrets {
		value, ok := os.LookupEnv(name)
		if !ok {
			return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("secret %s of step %s is not set", name, spec.Name))
		}
		sanitize.Instance().AddSecretValue(value)
		env[name] = value
	}
	return env, nil
}
