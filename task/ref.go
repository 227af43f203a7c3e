package task

import (
	"strings"

	"github.com/lexcodex/planform/framework"
)

// Ref is a parsed hierarchical reference. IDs are reference-encoding: the
// prefix of any ID below Task identifies the full ancestor chain, so a
// subtask ID like S1_W2_ET1_ST3 can be split back into its ancestry without
// searching the tree.
type Ref struct {
	StageID          string
	WorkID           string
	ExecutableTaskID string
	SubtaskID        string
}

// Depth returns how many levels the reference addresses (1..4).
func (r Ref) Depth() int {
	switch {
	case r.SubtaskID != "":
		return 4
	case r.ExecutableTaskID != "":
		return 3
	case r.WorkID != "":
		return 2
	case r.StageID != "":
		return 1
	}
	return 0
}

// Leaf returns the deepest ID the reference names.
func (r Ref) Leaf() string {
	switch {
	case r.SubtaskID != "":
		return r.SubtaskID
	case r.ExecutableTaskID != "":
		return r.ExecutableTaskID
	case r.WorkID != "":
		return r.WorkID
	}
	return r.StageID
}

// ParseRef splits a hierarchical ID into its ancestor chain. It accepts any
// depth from a bare stage (S1) down to a subtask (S1_W1_ET1_ST1).
func ParseRef(ref string) (Ref, error) {
	parts := strings.Split(ref, "_")
	if len(parts) == 0 || len(parts) > 4 {
		return Ref{}, framework.Validationf("malformed task reference %q", ref)
	}
	prefixes := []string{"S", "W", "ET", "ST"}
	var out Ref
	for i, part := range parts {
		if !strings.HasPrefix(part, prefixes[i]) || len(part) <= len(prefixes[i]) {
			return Ref{}, framework.Validationf("malformed task reference %q: segment %q should start with %s", ref, part, prefixes[i])
		}
		id := strings.Join(parts[:i+1], "_")
		switch i {
		case 0:
			out.StageID = id
		case 1:
			out.WorkID = id
		case 2:
			out.ExecutableTaskID = id
		case 3:
			out.SubtaskID = id
		}
	}
	return out, nil
}

// ResolveSubtask resolves a reference that must address a subtask, walking
// the full path so breaks in the chain surface as typed errors.
func (t *Task) ResolveSubtask(ref string) (*Subtask, error) {
	parsed, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	if parsed.Depth() != 4 {
		return nil, framework.Validationf("reference %q does not address a subtask", ref)
	}
	return t.SubtaskByPath(parsed.StageID, parsed.WorkID, parsed.ExecutableTaskID, parsed.SubtaskID)
}
