// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"context"

	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/config"
	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Logger receives progress messages and warnings.
//
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}

// Option configures a Transformer.
//
type Option func(*Transformer)

// WithLogger sets the transformer's logger.
//
func WithLogger(l Logger) Option {
	return func(t *Transformer) { t.log = l }
}

// Transformer turns programs into state machine networks. A Transformer
// keeps a cache of composed record types and should not be reused across
// unrelated programs.
//
type Transformer struct {
	cfg     *config.Config
	log     Logger
	records recordCache
}

// New returns a new Transformer. A nil cfg is replaced by config.Default().
//
func New(cfg *config.Config, opts ...Option) *Transformer {
	if cfg == nil {
		cfg = config.Default()
	}
	t := &Transformer{cfg: cfg, log: nopLogger{}}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Component is the hardware implementation of one instance of a member.
//
type Component struct {
	Member   string
	Instance int
	Machine  *hdl.StateMachine
	// Types lists the composite types referenced by Machine, dependencies
	// first, and its state enumeration.
	Types []hdl.DataType
}

// Result is the outcome of a successful transformation.
//
type Result struct {
	Components []*Component
	// Types is the union of the types of all components.
	Types    []hdl.DataType
	Warnings []Warning
}

// Component returns the component whose machine has the given name, or nil.
//
func (r *Result) Component(name string) *Component {
	c, _ := lo.Find(r.Components, func(c *Component) bool { return c.Machine.Name == name })
	return c
}

// Instances returns the components implementing member.
//
func (r *Result) Instances(member string) []*Component {
	return lo.Filter(r.Components, func(c *Component, _ int) bool { return c.Member == member })
}

// Machines returns the state machines of all components.
//
func (r *Result) Machines() []*hdl.StateMachine {
	return lo.Map(r.Components, func(c *Component, _ int) *hdl.StateMachine { return c.Machine })
}

type memberResult struct {
	components []*Component
	warnings   []Warning
}

// Transform lowers every member reachable from the entry points of p.
// Members are lowered concurrently. Either all members are transformed or
// the first fatal error is returned.
//
func (t *Transformer) Transform(ctx context.Context, p *ast.Program) (*Result, error) {
	entries := p.EntryPoints()
	if len(entries) == 0 {
		return nil, errors.New("no hardware entry point")
	}
	g := newCallGraph(entries)
	for _, m := range g.members {
		if m.Extern {
			return nil, newError(ErrExtern, m.FullName(), "", "managed code is required at this boundary")
		}
	}

	results := make([]memberResult, len(g.members))
	eg, gctx := errgroup.WithContext(ctx)
	for i, m := range g.members {
		eg.Go(func() error {
			t.log.Infof("transforming %s", m.FullName())
			r, err := t.transformMember(gctx, g, m)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, r := range results {
		res.Components = append(res.Components, r.components...)
		res.Warnings = append(res.Warnings, r.warnings...)
	}
	res.Warnings = sortWarnings(res.Warnings)
	for _, w := range res.Warnings {
		t.log.Warnf("%s", w)
	}
	res.Types = lo.UniqBy(lo.FlatMap(res.Components, func(c *Component, _ int) []hdl.DataType {
		return c.Types
	}), func(dt hdl.DataType) string { return dt.TypeName() })
	return res, nil
}

// transformMember builds all the instances of a member. Large instance
// counts are built concurrently.
func (t *Transformer) transformMember(ctx context.Context, g *callGraph, m *ast.Method) (memberResult, error) {
	n := t.cfg.Member(m.FullName()).MaxInvocationInstanceCount()
	comps := make([]*Component, n)
	warns := make([][]Warning, n)
	build := func(k int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := newScope(t, g, m, k, n)
		sm, err := s.transformMethod()
		if err != nil {
			return err
		}
		comps[k] = &Component{Member: s.member, Instance: k, Machine: sm, Types: collectTypes(sm)}
		warns[k] = s.warnings
		return nil
	}
	if n > t.cfg.ParallelInstanceThreshold {
		eg, gctx := errgroup.WithContext(ctx)
		ctx = gctx
		for k := 0; k < n; k++ {
			eg.Go(func() error { return build(k) })
		}
		if err := eg.Wait(); err != nil {
			return memberResult{}, err
		}
	} else {
		for k := 0; k < n; k++ {
			if err := build(k); err != nil {
				return memberResult{}, err
			}
		}
	}
	return memberResult{components: comps, warnings: lo.Flatten(warns)}, nil
}
