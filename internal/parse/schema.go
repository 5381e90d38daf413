package parse

import "github.com/hashicorp/hcl/v2"

const (
	BlockTypePipeline  = "pipeline"
	BlockTypeStep      = "step"
	BlockTypeGroup     = "group"
	BlockTypeDirectory = "directory"

	StepTypeContainer = "container"

	AttributeDescription = "description"
)

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{
			Type:       BlockTypePipeline,
			LabelNames: []string{"name"},
		},
	},
}

var elementBlocks = []hcl.BlockHeaderSchema{
	{
		Type:       BlockTypeStep,
		LabelNames: []string{"type", "name"},
	},
	{
		Type:       BlockTypePipeline,
		LabelNames: []string{"name"},
	},
	{
		Type: BlockTypeGroup,
	},
}

var pipelineSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{
			Name: AttributeDescription,
		},
	},
	Blocks: elementBlocks,
}

var groupSchema = &hcl.BodySchema{
	Blocks: elementBlocks,
}

// containerStepBlock is the body of a step "container" block.
type containerStepBlock struct {
	Image         string            `hcl:"image,optional"`
	UsePrevious   bool              `hcl:"use_previous,optional"`
	PreviousIndex *int              `hcl:"previous_index,optional"`
	Cmd           []string          `hcl:"cmd,optional"`
	Entrypoint    []string          `hcl:"entrypoint,optional"`
	Env           map[string]string `hcl:"env,optional"`
	Inputs        map[string]string `hcl:"inputs,optional"`
	Secrets       []string          `hcl:"secrets,optional"`
	Workdir       string            `hcl:"workdir,optional"`
	User          string            `hcl:"user,optional"`
	Commit        bool              `hcl:"commit,optional"`
	Outputs       []string          `hcl:"outputs,optional"`
	Directories   []directoryBlock  `hcl:"directory,block"`
}

type directoryBlock struct {
	Source  string   `hcl:"source" validate:"required"`
	Target  string   `hcl:"target" validate:"required,startswith=/"`
	Exclude []string `hcl:"exclude,optional"`
}
