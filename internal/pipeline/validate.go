package pipeline

import (
	"fmt"
	"strings"

	"github.com/turbot/flowci/internal/fperr"
)

// Validate checks a tree before it is executed: names must be non-empty and
// free of the scope separator, sibling node names must be unique, nodes and
// groups must not be empty and every leaf needs a function.
func Validate(root *Node) error {
	if root == nil {
		return fperr.ConfigurationWithMessage("pipeline is nil")
	}
	return validateNode(root, "")
}

func validateNode(n *Node, parentPath string) error {
	if n.Name == "" {
		return fperr.ConfigurationWithMessage(fmt.Sprintf("pipeline under '%s' has an empty name", parentPath))
	}
	if strings.Contains(n.Name, ".") {
		return fperr.ConfigurationWithMessage(fmt.Sprintf("pipeline name '%s' must not contain '.'", n.Name))
	}

	path := ScopePath(parentPath, n.Name)
	if len(n.Steps) == 0 {
		return fperr.ConfigurationWithMessage(fmt.Sprintf("pipeline '%s' has no steps", path))
	}

	seen := map[string]bool{}
	return validateElements(n.Steps, path, seen)
}

// validateElements checks one steps sequence. Node members of groups share
// the sequence's name space since they write sibling result keys.
func validateElements(elements []Element, path string, seen map[string]bool) error {
	for i, e := range elements {
		switch v := e.(type) {
		case *Leaf:
			if v == nil || v.Fn == nil {
				return fperr.ConfigurationWithMessage(fmt.Sprintf("step %d of '%s' has no function", i, path))
			}
		case *Node:
			if v == nil {
				return fperr.ConfigurationWithMessage(fmt.Sprintf("step %d of '%s' is a nil pipeline", i, path))
			}
			if seen[v.Name] {
				return fperr.ConfigurationWithMessage(fmt.Sprintf("duplicate pipeline name '%s' in '%s'", v.Name, path))
			}
			seen[v.Name] = true
			if err := validateNode(v, path); err != nil {
				return err
			}
		case *Group:
			if v == nil || len(v.Members) == 0 {
				return fperr.ConfigurationWithMessage(fmt.Sprintf("step %d of '%s' is an empty group", i, path))
			}
			if err := validateElements(v.Members, path, seen); err != nil {
				return err
			}
		default:
			return fperr.ConfigurationWithMessage(fmt.Sprintf("step %d of '%s' has unsupported type %T", i, path, e))
		}
	}
	return nil
}
