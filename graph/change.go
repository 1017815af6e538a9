package graph

import "fmt"

// Op is the kind of structural patch operation.
type Op string

const (
	OpAdd     Op = "add"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Keyed is anything addressable by id inside a Document.
type Keyed interface {
	Node | Edge
	Key() string
}

// Change is one structural diff operation. Value is required for add and
// replace and ignored for remove.
type Change[T Keyed] struct {
	Op    Op     `json:"op"`
	ID    string `json:"id"`
	Value *T     `json:"value,omitempty"`
}

type (
	NodeChange = Change[Node]
	EdgeChange = Change[Edge]
)

func AddChange[T Keyed](v T) Change[T] {
	return Change[T]{Op: OpAdd, ID: v.Key(), Value: &v}
}

func ReplaceChange[T Keyed](v T) Change[T] {
	return Change[T]{Op: OpReplace, ID: v.Key(), Value: &v}
}

func RemoveChange[T Keyed](id string) Change[T] {
	return Change[T]{Op: OpRemove, ID: id}
}

// Validate checks the shape of a single operation.
func (c Change[T]) Validate() error {
	switch c.Op {
	case OpAdd, OpReplace:
		if c.Value == nil {
			return fmt.Errorf("%s change for %q has no value", c.Op, c.ID)
		}
	case OpRemove:
		if c.ID == "" {
			return fmt.Errorf("remove change has no id")
		}
	default:
		return fmt.Errorf("unknown change op %q", c.Op)
	}
	return nil
}

// Apply returns a new slice with changes applied in order. Replace and
// remove address items by id and are no-ops when the id is absent, so
// applying the same replace or remove twice is harmless. Add appends
// without checking for an existing id. Malformed operations are skipped.
func Apply[T Keyed](items []T, changes []Change[T]) []T {
	out := make([]T, len(items), len(items)+len(changes))
	copy(out, items)

	for _, c := range changes {
		if c.Validate() != nil {
			continue
		}
		switch c.Op {
		case OpAdd:
			out = append(out, *c.Value)
		case OpReplace:
			id := c.ID
			if id == "" {
				id = (*c.Value).Key()
			}
			for i := range out {
				if out[i].Key() == id {
					out[i] = *c.Value
					break
				}
			}
		case OpRemove:
			kept := out[:0]
			for _, item := range out {
				if item.Key() != c.ID {
					kept = append(kept, item)
				}
			}
			out = kept
		}
	}
	return out
}
