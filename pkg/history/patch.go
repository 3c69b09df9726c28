package history

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-faster/errors"
	"github.com/wI2L/jsondiff"
)

// PatchCommand records the JSON diff between two states and replays it as
// RFC 6902 patches. A state that no longer matches the recorded diff is
// returned unchanged.
type PatchCommand[T any] struct {
	forward  jsonpatch.Patch
	backward jsonpatch.Patch
	ops      []byte
}

func NewPatchCommand[T any](before, after T) (*PatchCommand[T], error) {
	fwd, err := diff(before, after)
	if err != nil {
		return nil, err
	}
	bwd, err := diff(after, before)
	if err != nil {
		return nil, err
	}
	forward, err := jsonpatch.DecodePatch(fwd)
	if err != nil {
		return nil, errors.Wrap(err, "decode forward patch")
	}
	backward, err := jsonpatch.DecodePatch(bwd)
	if err != nil {
		return nil, errors.Wrap(err, "decode backward patch")
	}
	return &PatchCommand[T]{forward: forward, backward: backward, ops: fwd}, nil
}

func diff(from, to any) ([]byte, error) {
	p, err := jsondiff.Compare(from, to)
	if err != nil {
		return nil, errors.Wrap(err, "compare states")
	}
	if len(p) == 0 {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encode patch")
	}
	return b, nil
}

// Operations returns the forward patch as RFC 6902 JSON.
func (c *PatchCommand[T]) Operations() []byte {
	return c.ops
}

// Empty reports whether before and after were identical.
func (c *PatchCommand[T]) Empty() bool {
	return len(c.forward) == 0
}

func (c *PatchCommand[T]) Apply(state T) T  { return c.patch(state, c.forward) }
func (c *PatchCommand[T]) Revert(state T) T { return c.patch(state, c.backward) }

func (c *PatchCommand[T]) patch(state T, p jsonpatch.Patch) T {
	if len(p) == 0 {
		return state
	}
	doc, err := json.Marshal(state)
	if err != nil {
		return state
	}
	out, err := p.Apply(doc)
	if err != nil {
		return state
	}
	var next T
	if err := json.Unmarshal(out, &next); err != nil {
		return state
	}
	return next
}
