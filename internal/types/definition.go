package types

import (
	"fmt"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/turbot/flowci/internal/parse"
	"github.com/turbot/flowci/internal/pipeline"
	"github.com/turbot/flowci/internal/sanitize"
)

type PipelineListItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
	FileName    string `json:"file_name"`
	Tree        string `json:"tree,omitempty"`
}

// PrintableDefinition lists the pipelines of a definition. With tree set the
// pretty output also draws every pipeline's structure.
type PrintableDefinition struct {
	Items []PipelineListItem
	tree  bool
}

func NewPrintableDefinition(def *parse.Definition, tree bool) PrintableDefinition {
	p := PrintableDefinition{tree: tree}
	for _, d := range def.Pipelines {
		item := PipelineListItem{
			Name:        d.Name,
			Description: d.Description,
			Steps:       d.Steps,
			FileName:    d.FileName,
		}
		if tree {
			item.Tree = PipelineTree(d.Root)
		}
		p.Items = append(p.Items, item)
	}
	return p
}

func (p PrintableDefinition) GetItems(sanitizer *sanitize.Sanitizer) any {
	items := make([]PipelineListItem, len(p.Items))
	for i, item := range p.Items {
		item.Description = sanitizer.SanitizeString(item.Description)
		items[i] = item
	}
	return items
}

func (p PrintableDefinition) GetTable() (Table, error) {
	t := NewTable(
		Column("NAME", "string", "The name of the pipeline"),
		Column("STEPS", "integer", "Number of leaf steps"),
		Column("DESCRIPTION", "string", "The description of the pipeline"),
	)
	for _, item := range p.Items {
		t.AddRow(item.Name, item.Steps, item.Description)
	}
	return t, nil
}

func (p PrintableDefinition) Show(opts RenderOptions) string {
	au := aurora.NewAurora(opts.ColorEnabled)
	var b strings.Builder
	for i, item := range p.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s %s\n", au.Blue(item.Name).Bold(), au.Faint(fmt.Sprintf("(%d steps)", item.Steps))))
		if item.Description != "" {
			b.WriteString("  " + opts.Sanitizer.SanitizeString(item.Description) + "\n")
		}
		if p.tree {
			b.WriteString(item.Tree)
		}
	}
	return b.String()
}

// PipelineTree draws the structure of root, one element per line.
func PipelineTree(root *pipeline.Node) string {
	var b strings.Builder
	writeElements(&b, root.Steps, 1)
	return b.String()
}

func writeElements(b *strings.Builder, elements []pipeline.Element, indent int) {
	prefix := strings.Repeat("  ", indent)
	for _, e := range elements {
		switch v := e.(type) {
		case *pipeline.Leaf:
			b.WriteString(prefix + "- " + v.Name + "\n")
		case *pipeline.Node:
			b.WriteString(prefix + "pipeline " + v.Name + "\n")
			writeElements(b, v.Steps, indent+1)
		case *pipeline.Group:
			b.WriteString(prefix + "group\n")
			writeElements(b, v.Members, indent+1)
		}
	}
}
