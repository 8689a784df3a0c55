// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package sim runs a network of state machines produced by hwfsm.
//
// Every clock cycle has two phases. The wiring phase copies signal values
// between callers and callees (and the memory) through proxies. The
// evaluation phase runs the current state of every machine; machines only
// touch their own data objects and are spread over worker goroutines.
// Assignments to signals become visible in the next cycle, assignments to
// variables immediately.
//
package sim

import (
	"runtime"
	"sort"
	"sync"

	"github.com/db47h/hwfsm"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// DefaultMaxCycles is the default limit of clock cycles for a single Call.
//
const DefaultMaxCycles = 1 << 20

// Option configures a Simulator.
//
type Option func(*Simulator)

// Workers sets the number of goroutines used to evaluate machines. If less
// or equal to 0, the value of GOMAXPROCS will be used.
//
func Workers(n int) Option {
	return func(s *Simulator) { s.workers = n }
}

// WithMemory sets the memory machines read and write.
//
func WithMemory(mem *Memory) Option {
	return func(s *Simulator) { s.mem.mem = mem }
}

// MaxCycles sets the maximum number of clock cycles a Call may take.
//
func MaxCycles(n uint64) Option {
	return func(s *Simulator) { s.maxCycles = n }
}

// Simulator is a runnable simulation of a state machine network.
//
// Callers must make sure to call Dispose() once the simulator is no longer
// needed in order to stop worker goroutines.
//
type Simulator struct {
	machines  []*machine
	byName    map[string]*machine
	proxies   []*proxy
	hosts     map[string]*port
	mem       memoryProxy
	workers   int
	maxCycles uint64
	cycles    uint64

	mu   sync.Mutex // serializes calls
	wc   []chan struct{}
	errs []error
	wg   sync.WaitGroup
}

// New builds a simulator running the state machines of r.
//
func New(r *hwfsm.Result, opts ...Option) (*Simulator, error) {
	if r == nil || len(r.Components) == 0 {
		return nil, errors.New("empty state machine network")
	}
	s := &Simulator{
		byName:    make(map[string]*machine),
		hosts:     make(map[string]*port),
		maxCycles: DefaultMaxCycles,
	}
	for _, o := range opts {
		o(s)
	}
	for _, sm := range r.Machines() {
		m, err := newMachine(sm)
		if err != nil {
			return nil, err
		}
		s.machines = append(s.machines, m)
		s.byName[sm.Name] = m
	}
	if err := s.wire(); err != nil {
		return nil, err
	}
	s.start()
	return s, nil
}

// wire builds a proxy per machine, with a host port first, then a port per
// caller in name order.
func (s *Simulator) wire() error {
	proxies := make(map[string]*proxy, len(s.machines))
	for _, m := range s.machines {
		p := newProxy(m)
		if p.started == nil || p.finished == nil {
			return errors.Errorf("%s has no handshake signals", m.sm.Name)
		}
		h := hostPort(m)
		s.hosts[m.sm.Name] = h
		p.ports = append(p.ports, h)
		proxies[m.sm.Name] = p
		s.proxies = append(s.proxies, p)
	}
	callers := append([]*machine(nil), s.machines...)
	sort.Slice(callers, func(i, j int) bool { return callers[i].sm.Name < callers[j].sm.Name })
	for _, caller := range callers {
		for _, name := range caller.sm.Invoked {
			callee, ok := s.byName[name]
			if !ok {
				return errors.Errorf("%s invokes unknown machine %s", caller.sm.Name, name)
			}
			pt, err := callerPort(caller, callee)
			if err != nil {
				return err
			}
			proxies[name].ports = append(proxies[name].ports, pt)
		}
		if caller.sm.UsesMemory {
			mp, err := newMemoryPort(caller)
			if err != nil {
				return err
			}
			s.mem.ports = append(s.mem.ports, mp)
		}
	}
	if len(s.mem.ports) > 0 && s.mem.mem == nil {
		names := lo.Map(s.mem.ports, func(mp *memoryPort, _ int) string { return mp.name })
		return errors.Errorf("machines %v use memory but the simulator has none", names)
	}
	return nil
}

func (s *Simulator) start() {
	workers := s.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(-1)
	}
	if workers <= 0 {
		workers = 1
	}
	ms := s.machines
	for len(ms) > 0 {
		size := len(ms) / workers
		if size*workers < len(ms) {
			size++
		}
		wc := make(chan struct{}, 1)
		s.wc = append(s.wc, wc)
		s.errs = append(s.errs, nil)
		go s.worker(len(s.wc)-1, ms[:size], wc)
		ms = ms[size:]
	}
}

func (s *Simulator) worker(n int, ms []*machine, wc <-chan struct{}) {
	for {
		_, ok := <-wc
		if !ok {
			s.wg.Done()
			return
		}
		for _, m := range ms {
			if err := m.step(); err != nil && s.errs[n] == nil {
				s.errs[n] = err
			}
		}
		s.wg.Done()
	}
}

// Dispose releases all resources allocated for a simulator and stops worker
// goroutines.
//
func (s *Simulator) Dispose() {
	s.wg.Add(len(s.wc))
	for _, wc := range s.wc {
		close(wc)
	}
	s.wg.Wait()
	s.wc = nil
}

// Step advances the simulation by one clock cycle.
//
func (s *Simulator) Step() error {
	for _, p := range s.proxies {
		p.wire()
	}
	if err := s.mem.wire(); err != nil {
		return err
	}
	s.wg.Add(len(s.wc))
	for _, wc := range s.wc {
		wc <- struct{}{}
	}
	s.wg.Wait()
	s.cycles++
	for i, err := range s.errs {
		if err != nil {
			s.errs[i] = nil
			return err
		}
	}
	return nil
}

// Cycles returns the number of clock cycles run so far.
//
func (s *Simulator) Cycles() uint64 { return s.cycles }

// Size returns the number of machines in the simulation.
//
func (s *Simulator) Size() int { return len(s.machines) }

// State returns the index of the state machine name executes next.
//
func (s *Simulator) State(name string) (int, bool) {
	m, ok := s.byName[name]
	if !ok {
		return 0, false
	}
	return m.state(), true
}

// Object returns the current value of a data object of a machine.
//
func (s *Simulator) Object(machine, name string) (Value, bool) {
	m, ok := s.byName[machine]
	if !ok {
		return Value{}, false
	}
	o, ok := m.objs[name]
	if !ok {
		return Value{}, false
	}
	return o.cur, true
}

// MachineCycles returns the number of clock cycles machine name spent
// outside of its idle state.
func (s *Simulator) MachineCycles(name string) uint64 {
	if m, ok := s.byName[name]; ok {
		return m.cycles
	}
	return 0
}
