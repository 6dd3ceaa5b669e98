package tool

import (
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

// Registry is immutable after construction and safe for concurrent reads.
type Registry struct {
	order []Name
	tools map[Name]Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[Name]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		if _, dup := r.tools[t.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate tool %s", contractx.ErrValidation, t.Name())
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r, nil
}

// Infos returns the model-facing definitions in registration order.
func (r *Registry) Infos() []*schema.ToolInfo {
	if r == nil {
		return nil
	}
	out := make([]*schema.ToolInfo, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n].Info())
	}
	return out
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[Name(name)]
	return t, ok
}

func (r *Registry) Names() []Name {
	if r == nil {
		return nil
	}
	return append([]Name(nil), r.order...)
}
