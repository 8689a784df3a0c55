// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package hwtest provides utility functions for testing transformed members.
//
package hwtest

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/db47h/hwfsm/hdl"
	"github.com/db47h/hwfsm/sim"
)

// Func is the reference implementation of a member. It gets the arguments of
// a call, as converted to the parameter types, and returns the expected
// result. Booleans are passed as 0 or 1.
//
type Func func(args []int64) int64

func argString(ps []sim.Param, args []int64) string {
	var b strings.Builder
	for i, p := range ps {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%d", p.Name, args[i])
	}
	return b.String()
}

func arg(t hdl.Scalar, bits uint64) (sim.Value, int64) {
	if t.Kind == hdl.Boolean {
		v := sim.Bool(bits&1 != 0)
		return v, int64(bits & 1)
	}
	v := sim.Int(t, int64(bits))
	return v, v.Int64()
}

// CompareMember calls member in s with random arguments and compares the
// results with those of ref. It tries all zero and all ones arguments first,
// then iter random argument sets. Parameters must be of integer or boolean
// types.
//
func CompareMember(t *testing.T, s *sim.Simulator, member string, iter int, ref Func) {
	t.Helper()

	ps, err := s.Params(member)
	if err != nil {
		t.Fatal(err)
	}
	types := make([]hdl.Scalar, len(ps))
	for i, p := range ps {
		st, ok := p.Type.(hdl.Scalar)
		if !ok || st.Kind == hdl.Real {
			t.Fatalf("parameter %s of %s: unsupported type %s", p.Name, member, p.Type.TypeName())
		}
		types[i] = st
	}

	seed := time.Now().UnixNano()
	rnd := rand.New(rand.NewSource(seed))
	args := make([]interface{}, len(ps))
	want := make([]int64, len(ps))

	try := func(gen func() uint64) {
		t.Helper()
		for i, st := range types {
			args[i], want[i] = arg(st, gen())
		}
		r, err := s.Call(context.Background(), member, args...)
		if err != nil {
			t.Fatalf("%s(%s): %v", member, argString(ps, want), err)
		}
		if ex, got := ref(want), r.Value.Int64(); ex != got {
			t.Fatalf("\nExpected %s(%s) = %d\nGot %d (seed %d)", member, argString(ps, want), ex, got, seed)
		}
	}

	start, cycles := time.Now(), s.Cycles()

	// try all 0
	try(func() uint64 { return 0 })
	// try all 1
	try(func() uint64 { return ^uint64(0) })
	for i := 0; i < iter; i++ {
		try(rnd.Uint64)
	}

	elapsed := time.Since(start)
	n := s.Cycles() - cycles
	t.Logf("%d machines. %d calls in %v. %d clock cycles => %.2f Hz", s.Size(), iter+2, elapsed, n, float64(n)/(float64(elapsed)/float64(time.Second)))
}
