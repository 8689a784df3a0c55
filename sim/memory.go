// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"sync"

	"github.com/db47h/hwfsm"
	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

// Memory is a memory of 32 bits cells shared by all machines of a
// simulation.
//
type Memory struct {
	mu    sync.Mutex
	cells []uint32
}

// NewMemory returns a memory with the given number of cells.
//
func NewMemory(size int) *Memory {
	return &Memory{cells: make([]uint32, size)}
}

// Len returns the number of cells.
func (mem *Memory) Len() int { return len(mem.cells) }

// Read returns the content of cell i.
//
func (mem *Memory) Read(i int) uint32 {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	return mem.cells[i]
}

// Write sets the content of cell i.
//
func (mem *Memory) Write(i int, v uint32) {
	mem.mu.Lock()
	mem.cells[i] = v
	mem.mu.Unlock()
}

// memoryPort holds the memory signals of one machine.
type memoryPort struct {
	name                          string
	cellIndex, dataOut            *object
	readEnable, writeEnable       *object
	dataIn, readsDone, writesDone *object
}

func newMemoryPort(m *machine) (*memoryPort, error) {
	mp := &memoryPort{name: m.sm.Name}
	for _, s := range []struct {
		o    **object
		name string
	}{
		{&mp.cellIndex, hwfsm.MemoryCellIndex},
		{&mp.dataOut, hwfsm.MemoryDataOut},
		{&mp.readEnable, hwfsm.MemoryReadEnable},
		{&mp.writeEnable, hwfsm.MemoryWriteEnable},
		{&mp.dataIn, hwfsm.MemoryDataIn},
		{&mp.readsDone, hwfsm.MemoryReadsDone},
		{&mp.writesDone, hwfsm.MemoryWritesDone},
	} {
		o, ok := m.objs[m.sm.Prefixed(s.name)]
		if !ok {
			return nil, errors.Errorf("%s: missing memory signal %s", m.sm.Name, s.name)
		}
		*s.o = o
	}
	return mp, nil
}

func (mp *memoryPort) enabled() bool { return mp.readEnable.cur.Bool() || mp.writeEnable.cur.Bool() }

// memoryProxy serves the memory requests of one machine at a time. A
// machine keeps the memory until it drops both enable signals.
type memoryProxy struct {
	mem   *Memory
	ports []*memoryPort
	owner *memoryPort
}

func (p *memoryProxy) wire() error {
	if p.owner != nil && !p.owner.enabled() {
		p.owner = nil
	}
	if p.owner == nil {
		for _, mp := range p.ports {
			if mp.enabled() {
				p.owner = mp
				break
			}
		}
	}
	for _, mp := range p.ports {
		mp.readsDone.cur = Bool(false)
		mp.writesDone.cur = Bool(false)
		if mp != p.owner {
			continue
		}
		i := int(mp.cellIndex.cur.Int64())
		if i < 0 || i >= p.mem.Len() {
			return errors.Errorf("%s: memory cell index %d out of range [0:%d]", mp.name, i, p.mem.Len())
		}
		if mp.writeEnable.cur.Bool() {
			p.mem.Write(i, uint32(mp.dataOut.cur.Bits))
			mp.writesDone.cur = Bool(true)
		}
		if mp.readEnable.cur.Bool() {
			mp.dataIn.cur = Value{Type: hdl.VectorType(hwfsm.MemoryCellSize), Bits: uint64(p.mem.Read(i))}
			mp.readsDone.cur = Bool(true)
		}
	}
	return nil
}
