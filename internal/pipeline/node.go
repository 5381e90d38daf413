package pipeline

import "strings"

// Element is one entry of a node's steps: a *Leaf, a *Node or a *Group.
type Element interface {
	isElement()
}

// Leaf is an atomic unit of work.
type Leaf struct {
	Name string
	Fn   StepFunc
}

// Node is a named, ordered sequence of elements executed with its own scope.
type Node struct {
	Name  string
	Steps []Element
}

// Group runs its members concurrently with each other and joins them before
// the next element of the enclosing node starts.
type Group struct {
	Members []Element
}

func (*Leaf) isElement()  {}
func (*Node) isElement()  {}
func (*Group) isElement() {}

// New builds a node from its steps.
func New(name string, steps ...Element) *Node {
	return &Node{
		Name:  name,
		Steps: steps,
	}
}

// Step wraps fn as a leaf step. The name is only used for logging and
// timings.
func Step(name string, fn StepFunc) *Leaf {
	return &Leaf{
		Name: name,
		Fn:   fn,
	}
}

// Concurrent builds a concurrent group.
func Concurrent(members ...Element) *Group {
	return &Group{
		Members: members,
	}
}

// Add appends elements to the node and returns it.
func (n *Node) Add(steps ...Element) *Node {
	n.Steps = append(n.Steps, steps...)
	return n
}

// ScopePath joins scope names the way result keys and backend labels are
// built: "ci.build.unit".
func ScopePath(parent string, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// SplitScopePath is the inverse of ScopePath.
func SplitScopePath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// CountLeaves returns the number of leaf steps anywhere below elements.
func CountLeaves(elements ...Element) int {
	count := 0
	for _, e := range elements {
		switch v := e.(type) {
		case *Leaf:
			count++
		case *Node:
			count += CountLeaves(v.Steps...)
		case *Group:
			count += CountLeaves(v.Members...)
		}
	}
	return count
}
