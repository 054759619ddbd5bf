package dependency

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"
)

const kindChain = "chain"

// Chain combines dependencies. By default it is changed as soon as any
// member changes. With RequireAll it is changed only once every member has.
// An empty chain never changes. Nil members are ignored.
type Chain struct {
	Deps       []Dependency
	RequireAll bool
}

func NewChain(deps ...Dependency) *Chain { return &Chain{Deps: compact(deps)} }

// NewChainAll is a chain that changes only when all members have changed.
func NewChainAll(deps ...Dependency) *Chain { return &Chain{Deps: compact(deps), RequireAll: true} }

func compact(deps []Dependency) []Dependency {
	out := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (*Chain) Kind() string { return kindChain }

func (c *Chain) Evaluate(ctx context.Context, env Env) (Dependency, error) {
	out := &Chain{RequireAll: c.RequireAll, Deps: make([]Dependency, 0, len(c.Deps))}
	for _, d := range c.Deps {
		if d == nil {
			continue
		}
		ev, err := d.Evaluate(ctx, env)
		if err != nil {
			return nil, err
		}
		out.Deps = append(out.Deps, ev)
	}
	return out, nil
}

func (c *Chain) Changed(ctx context.Context, env Env) (bool, error) {
	deps := compact(c.Deps)
	if len(deps) == 0 {
		return false, nil
	}
	for _, d := range deps {
		changed, err := d.Changed(ctx, env)
		if err != nil {
			return true, err
		}
		if c.RequireAll && !changed {
			return false, nil
		}
		if !c.RequireAll && changed {
			return true, nil
		}
	}
	return c.RequireAll, nil
}

type chainState struct {
	All  bool     `msgpack:"a"`
	Deps [][]byte `msgpack:"d"`
}

func (c *Chain) MarshalMsgpack() ([]byte, error) {
	st := chainState{All: c.RequireAll, Deps: make([][]byte, 0, len(c.Deps))}
	for _, d := range compact(c.Deps) {
		b, err := Marshal(d)
		if err != nil {
			return nil, err
		}
		st.Deps = append(st.Deps, b)
	}
	return msgpack.Marshal(st)
}

func (c *Chain) UnmarshalMsgpack(b []byte) error {
	var st chainState
	if err := msgpack.Unmarshal(b, &st); err != nil {
		return err
	}
	c.RequireAll = st.All
	c.Deps = make([]Dependency, 0, len(st.Deps))
	for _, raw := range st.Deps {
		d, err := Unmarshal(raw)
		if err != nil {
			return err
		}
		if d != nil {
			c.Deps = append(c.Deps, d)
		}
	}
	return nil
}
