// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package device provides the timing model of a target device: how many clock
// cycles an operation of a given width takes.
//
package device

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Operation names used in timing tables.
//
const (
	OpAdd        = "add"
	OpSub        = "sub"
	OpMul        = "mul"
	OpDiv        = "div"
	OpRem        = "rem"
	OpCompare    = "compare"
	OpShiftLeft  = "shl"
	OpShiftRight = "shr"
	OpLogic      = "logic"
	OpNeg        = "neg"
)

// DefaultClockCycles is the cost of an operation missing from the timing
// table.
//
const DefaultClockCycles = 0.1

// Timing is the measured combinational delay of an operation.
//
type Timing struct {
	Op     string  `toml:"op"`
	Size   int     `toml:"size"`
	Signed bool    `toml:"signed"`
	Delay  float64 `toml:"delay-ns"`
}

// Device describes a target device.
//
type Device struct {
	Name string `toml:"name"`
	// ClockFrequency in MHz.
	ClockFrequency float64 `toml:"clock-frequency-mhz"`
	// SafetyMargin is added to every delay, as a fraction of it.
	SafetyMargin float64  `toml:"safety-margin"`
	Timings      []Timing `toml:"timing"`
}

// Validate checks that d can be used for cost lookups.
//
func (d *Device) Validate() error {
	if d.ClockFrequency <= 0 {
		return errors.Errorf("device %s: invalid clock frequency %g", d.Name, d.ClockFrequency)
	}
	if d.SafetyMargin < 0 {
		return errors.Errorf("device %s: negative safety margin", d.Name)
	}
	for _, t := range d.Timings {
		if t.Op == "" || t.Size <= 0 || t.Delay < 0 {
			return errors.Errorf("device %s: invalid timing entry %+v", d.Name, t)
		}
	}
	return nil
}

// ClockCycles returns the number of clock cycles op takes on operands of the
// given width and signedness. If the table has no entry for that width, the
// nearest wider one is used, then the widest one. Operations missing from the
// table cost DefaultClockCycles.
//
func (d *Device) ClockCycles(op string, size int, signed bool) float64 {
	ts := lo.Filter(d.Timings, func(t Timing, _ int) bool {
		return t.Op == op && t.Signed == signed
	})
	if len(ts) == 0 {
		return DefaultClockCycles
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Size < ts[j].Size })
	t, ok := lo.Find(ts, func(t Timing) bool { return t.Size >= size })
	if !ok {
		t = ts[len(ts)-1]
	}
	return t.Delay * (1 + d.SafetyMargin) * d.ClockFrequency / 1000
}

// MixedClockCycles returns the cost of op on operands of possibly differing
// signedness: the slower of the two.
//
func (d *Device) MixedClockCycles(op string, size int, xSigned, ySigned bool) float64 {
	c := d.ClockCycles(op, size, xSigned)
	if xSigned != ySigned {
		if c2 := d.ClockCycles(op, size, ySigned); c2 > c {
			return c2
		}
	}
	return c
}

// delays in ns for 8, 16, 32 and 64 bit unsigned operands.
var defaultDelays = map[string][4]float64{
	OpAdd:        {1.2, 1.8, 3.0, 5.5},
	OpSub:        {1.2, 1.8, 3.0, 5.5},
	OpNeg:        {1.0, 1.5, 2.6, 4.8},
	OpCompare:    {1.0, 1.4, 2.2, 3.6},
	OpMul:        {6.0, 9.5, 24.0, 58.0},
	OpDiv:        {40, 95, 260, 650},
	OpRem:        {42, 98, 265, 660},
	OpShiftLeft:  {1.5, 2.5, 3.5, 5.0},
	OpShiftRight: {1.5, 2.5, 3.5, 5.0},
	OpLogic:      {0.5, 0.5, 0.6, 0.8},
}

// Default returns the default device: a 100 MHz part with timings typical of
// mid-range FPGAs.
//
func Default() *Device {
	d := &Device{Name: "default", ClockFrequency: 100}
	for op, delays := range defaultDelays {
		for i, size := range []int{8, 16, 32, 64} {
			d.Timings = append(d.Timings,
				Timing{Op: op, Size: size, Delay: delays[i]},
				// signed division and remainder need a sign fixup stage.
				Timing{Op: op, Size: size, Signed: true, Delay: signedDelay(op, delays[i])},
			)
		}
	}
	sort.Slice(d.Timings, func(i, j int) bool {
		a, b := d.Timings[i], d.Timings[j]
		if a.Op != b.Op {
			return a.Op < b.Op
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return !a.Signed && b.Signed
	})
	return d
}

func signedDelay(op string, delay float64) float64 {
	if op == OpDiv || op == OpRem {
		return delay * 1.1
	}
	return delay
}
