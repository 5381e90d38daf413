package parse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/turbot/go-kit/files"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/turbot/flowci/internal/container"
	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/fplog"
	"github.com/turbot/flowci/internal/pipeline"
	"github.com/turbot/flowci/internal/primitive"
)

const DefinitionFileExtension = ".hcl"

// Definition is the set of pipelines declared by one file or directory.
type Definition struct {
	Path      string
	Pipelines []*PipelineDefinition
}

// PipelineDefinition is one top level pipeline block.
type PipelineDefinition struct {
	Name        string
	Description string
	FileName    string
	Root        *pipeline.Node
	Steps       int
}

// Find returns the pipeline called name.
func (d *Definition) Find(name string) (*PipelineDefinition, error) {
	for _, p := range d.Pipelines {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fperr.NotFoundWithMessage(fmt.Sprintf("pipeline %s not found in %s", name, d.Path))
}

func (d *Definition) Names() []string {
	names := make([]string, 0, len(d.Pipelines))
	for _, p := range d.Pipelines {
		names = append(names, p.Name)
	}
	return names
}

// Load parses a definition file, or every *.hcl file of a directory in
// name order. vars are available to expressions as var.<name>.
func Load(ctx context.Context, path string, vars map[string]string) (*Definition, error) {
	path, err := files.Tildefy(path)
	if err != nil {
		return nil, fperr.ConfigurationWithMessage(err.Error())
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fperr.NotFoundWithMessage("definition path not found: " + path)
		}
		return nil, fperr.ConfigurationWithMessage(err.Error())
	}

	fileNames := []string{path}
	if info.IsDir() {
		fileNames, err = definitionFiles(path)
		if err != nil {
			return nil, err
		}
	}

	def := &Definition{Path: path}
	for _, fileName := range fileNames {
		src, err := os.ReadFile(fileName)
		if err != nil {
			return nil, fperr.ConfigurationWithMessage(err.Error())
		}
		fileDef, err := LoadBytes(ctx, fileName, src, vars)
		if err != nil {
			return nil, err
		}
		for _, p := range fileDef.Pipelines {
			if existing, err := def.Find(p.Name); err == nil {
				return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("pipeline %s is declared in both %s and %s", p.Name, existing.FileName, p.FileName))
			}
			def.Pipelines = append(def.Pipelines, p)
		}
	}

	fplog.Logger(ctx).Debug("definition loaded", "path", path, "files", len(fileNames), "pipelines", len(def.Pipelines))
	return def, nil
}

func definitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fperr.ConfigurationWithMessage(err.Error())
	}

	var fileNames []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != DefinitionFileExtension {
			continue
		}
		fileNames = append(fileNames, filepath.Join(dir, e.Name()))
	}
	if len(fileNames) == 0 {
		return nil, fperr.NotFoundWithMessage("no definition files found in " + dir)
	}
	sort.Strings(fileNames)
	return fileNames, nil
}

// LoadBytes parses the source of one definition file.
func LoadBytes(ctx context.Context, fileName string, src []byte, vars map[string]string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, fileName)
	if diags.HasErrors() {
		return nil, diagsToError(diags)
	}

	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, diagsToError(diags)
	}

	p := &decoder{
		evalCtx:  buildEvalContext(vars),
		validate: validator.New(),
		baseDir:  filepath.Dir(fileName),
	}

	def := &Definition{Path: fileName}
	seen := map[string]bool{}
	for _, block := range content.Blocks {
		root, description, err := p.decodePipeline(block)
		if err != nil {
			return nil, err
		}
		if seen[root.Name] {
			return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("%s: duplicate pipeline %s", block.DefRange, root.Name))
		}
		seen[root.Name] = true

		if err := pipeline.Validate(root); err != nil {
			return nil, err
		}

		def.Pipelines = append(def.Pipelines, &PipelineDefinition{
			Name:        root.Name,
			Description: description,
			FileName:    fileName,
			Root:        root,
			Steps:       pipeline.CountLeaves(root.Steps...),
		})
	}

	fplog.Logger(ctx).Trace("definition file parsed", "file", fileName, "pipelines", def.Names())
	return def, nil
}

type decoder struct {
	evalCtx  *hcl.EvalContext
	validate *validator.Validate
	baseDir  string
}

func (p *decoder) decodePipeline(block *hcl.Block) (*pipeline.Node, string, error) {
	content, diags := block.Body.Content(pipelineSchema)
	if diags.HasErrors() {
		return nil, "", diagsToError(diags)
	}

	var description string
	if attr, ok := content.Attributes[AttributeDescription]; ok {
		diags = gohcl.DecodeExpression(attr.Expr, p.evalCtx, &description)
		if diags.HasErrors() {
			return nil, "", diagsToError(diags)
		}
	}

	steps, err := p.decodeElements(content.Blocks)
	if err != nil {
		return nil, "", err
	}
	return pipeline.New(block.Labels[0], steps...), description, nil
}

// decodeElements keeps the source order of the blocks, which hcl preserves
// in BodyContent.Blocks.
func (p *decoder) decodeElements(blocks hcl.Blocks) ([]pipeline.Element, error) {
	elements := make([]pipeline.Element, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case BlockTypeStep:
			leaf, err := p.decodeStep(block)
			if err != nil {
				return nil, err
			}
			elements = append(elements, leaf)

		case BlockTypePipeline:
			node, _, err := p.decodePipeline(block)
			if err != nil {
				return nil, err
			}
			elements = append(elements, node)

		case BlockTypeGroup:
			content, diags := block.Body.Content(groupSchema)
			if diags.HasErrors() {
				return nil, diagsToError(diags)
			}
			members, err := p.decodeElements(content.Blocks)
			if err != nil {
				return nil, err
			}
			elements = append(elements, pipeline.Concurrent(members...))
		}
	}
	return elements, nil
}

func (p *decoder) decodeStep(block *hcl.Block) (*pipeline.Leaf, error) {
	stepType, name := block.Labels[0], block.Labels[1]
	if stepType != StepTypeContainer {
		return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("%s: unsupported step type %s", block.DefRange, stepType))
	}

	var body containerStepBlock
	diags := gohcl.DecodeBody(block.Body, p.evalCtx, &body)
	if diags.HasErrors() {
		return nil, diagsToError(diags)
	}

	spec := primitive.ContainerSpec{
		Name:          name,
		Image:         body.Image,
		UsePrevious:   body.UsePrevious,
		PreviousIndex: body.PreviousIndex,
		Cmd:           body.Cmd,
		Entrypoint:    body.Entrypoint,
		Env:           body.Env,
		Inputs:        body.Inputs,
		Secrets:       body.Secrets,
		Workdir:       body.Workdir,
		User:          body.User,
		Commit:        body.Commit,
		Outputs:       body.Outputs,
	}
	for _, d := range body.Directories {
		if err := p.validate.Struct(d); err != nil {
			return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("%s: step %s directory: %s", block.DefRange, name, err))
		}
		source := d.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(p.baseDir, source)
		}
		spec.Directories = append(spec.Directories, container.Directory{
			Source:  source,
			Target:  d.Target,
			Exclude: d.Exclude,
		})
	}

	if err := p.validate.Struct(spec); err != nil {
		return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("%s: step %s: %s", block.DefRange, name, err))
	}
	if spec.UsePrevious && spec.Image != "" {
		return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("%s: step %s sets both image and use_previous", block.DefRange, name))
	}

	return pipeline.Step(name, primitive.ContainerStep(spec)), nil
}

func buildEvalContext(vars map[string]string) *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
	}

	varValues := map[string]cty.Value{}
	for k, v := range vars {
		varValues[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
			"var": cty.ObjectVal(varValues),
		},
		Functions: map[string]function.Function{
			"upper":     stdlib.UpperFunc,
			"lower":     stdlib.LowerFunc,
			"join":      stdlib.JoinFunc,
			"format":    stdlib.FormatFunc,
			"trimspace": stdlib.TrimSpaceFunc,
			"concat":    stdlib.ConcatFunc,
			"coalesce":  stdlib.CoalesceFunc,
			"replace":   stdlib.ReplaceFunc,
		},
	}
}

func diagsToError(diags hcl.Diagnostics) error {
	var msgs []string
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		if d.Subject != nil {
			msg = d.Subject.String() + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	return fperr.ConfigurationWithMessage(strings.Join(msgs, "; "))
}
