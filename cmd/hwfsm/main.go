// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command hwfsm transforms a sample program into a state machine network and
// runs it in the simulator.
//
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/db47h/hwfsm"
	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/config"
	"github.com/db47h/hwfsm/hdl"
	. "github.com/db47h/hwfsm/internal/build"
	"github.com/db47h/hwfsm/logging"
	"github.com/db47h/hwfsm/sim"
)

// sample returns a program with two entry points: a recursive Fibonacci
// function and a function summing memory cells.
func sample() (*ast.Program, *ast.Method, *ast.Method) {
	c := Class("Demo")
	n := Var("n", ast.Int)
	fib := Entry(c, "Fib", ast.Int, []*ast.Param{Param("n", ast.Int)})
	fib.Body = Block(
		If(Bin(ast.OpLt, n, Int(2)), Return(n), nil),
		Return(Bin(ast.OpAdd,
			Call(fib, Bin(ast.OpSub, n, Int(1))),
			Call(fib, Bin(ast.OpSub, n, Int(2))))))

	i, sum := Var("i", ast.Int), Var("sum", ast.Int)
	sumCells := Entry(c, "SumCells", ast.Int, []*ast.Param{Param("n", ast.Int)},
		Decl("sum", ast.Int, Int(0)),
		Decl("i", ast.Int, Int(0)),
		While(Bin(ast.OpLt, i, n),
			AssignOp(ast.OpAdd, sum, Memory("ReadInt32", ast.Int, i)),
			Inc(i)),
		Return(sum))
	return Program(c), fib, sumCells
}

func main() {
	var (
		cfgPath = flag.String("config", "", "configuration `file`")
		verbose = flag.Bool("v", false, "verbose output")
		dump    = flag.Bool("dump", false, "dump state machines")
		arg     = flag.Int("n", 10, "argument of the sample functions")
	)
	flag.Parse()

	level := logging.LevelWarning
	if *verbose {
		level = logging.LevelVerbose
	}
	log := logging.New(os.Stderr, level)

	p, fib, sumCells := sample()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Error("config", err)
			os.Exit(1)
		}
	}
	if len(cfg.Members) == 0 {
		cfg.SetMember(config.MemberConfig{Name: fib.FullName(), MaxRecursionDepth: 12})
	}

	r, err := hwfsm.New(cfg, hwfsm.WithLogger(log)).Transform(context.Background(), p)
	if err != nil {
		log.Error("transform", err)
		os.Exit(1)
	}
	log.Infof("%d components, %d types", len(r.Components), len(r.Types))
	if *dump {
		for _, m := range r.Machines() {
			if err = hdl.Dump(os.Stdout, m); err != nil {
				log.Error("dump", err)
				os.Exit(1)
			}
		}
	}

	mem := sim.NewMemory(256)
	for k := 0; k < mem.Len(); k++ {
		mem.Write(k, uint32(k))
	}
	s, err := sim.New(r, sim.WithMemory(mem))
	if err != nil {
		log.Error("simulator", err)
		os.Exit(1)
	}
	defer s.Dispose()

	for _, m := range []*ast.Method{fib, sumCells} {
		res, err := s.Call(context.Background(), m.FullName(), *arg)
		if err != nil {
			log.Error("simulation", err)
			os.Exit(1)
		}
		fmt.Printf("%s(%d) = %v in %d clock cycles\n", m.Name, *arg, res.Value, res.Cycles)
	}
}
