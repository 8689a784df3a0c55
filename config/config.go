// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package config holds the transformation settings: per-member instance
// counts, thresholds and the target device.
//
// A configuration file is written in TOML:
//
//	max-non-primitive-array-length = 100
//
//	[[member]]
//	name = "Calculator::Fib(int)"
//	max-recursion-depth = 4
//
//	[[member]]
//	name = "Worker::*"
//	max-degree-of-parallelism = 8
//
//	[device]
//	name = "artix7"
//	clock-frequency-mhz = 100
//
//	[[device.timing]]
//	op = "mul"
//	size = 32
//	signed = true
//	delay-ns = 24.0
//
package config

import (
	"io/ioutil"
	"strings"

	"github.com/db47h/hwfsm/device"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Default thresholds.
//
const (
	DefaultMaxNonPrimitiveArrayLength = 100
	DefaultParallelInstanceThreshold  = 50
)

// MemberConfig is the instance-count configuration of a member. Name is a
// member full name, or a prefix followed by '*'.
//
type MemberConfig struct {
	Name                   string `toml:"name"`
	MaxDegreeOfParallelism int    `toml:"max-degree-of-parallelism"`
	MaxRecursionDepth      int    `toml:"max-recursion-depth"`
}

// MaxInvocationInstanceCount returns the number of hardware instances needed
// for the member.
//
func (m MemberConfig) MaxInvocationInstanceCount() int {
	return (m.MaxRecursionDepth + 1) * m.MaxDegreeOfParallelism
}

// Config is the transformer configuration.
//
type Config struct {
	Members []MemberConfig `toml:"member"`
	// Arrays of non-primitive elements longer than this trigger a warning.
	MaxNonPrimitiveArrayLength int `toml:"max-non-primitive-array-length"`
	// Machine instances of a member are built concurrently above this count.
	ParallelInstanceThreshold int            `toml:"parallel-instance-threshold"`
	Device                    *device.Device `toml:"device"`
}

// Default returns the default configuration.
//
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a configuration file.
//
func Load(path string) (*Config, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	c, err := Parse(buf)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

// Parse parses a TOML configuration.
//
func Parse(buf []byte) (*Config, error) {
	tree, err := toml.LoadBytes(buf)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	realValues(tree)
	c := &Config{}
	if err = tree.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// realValues converts integer values of real-valued device settings to
// float64, so that `clock-frequency-mhz = 100` decodes like `100.0`.
//
func realValues(t *toml.Tree) {
	toReal(t, "device.clock-frequency-mhz")
	toReal(t, "device.safety-margin")
	if ts, ok := t.Get("device.timing").([]*toml.Tree); ok {
		for _, tt := range ts {
			toReal(tt, "delay-ns")
		}
	}
}

func toReal(t *toml.Tree, key string) {
	if v, ok := t.Get(key).(int64); ok {
		t.Set(key, float64(v))
	}
}

func (c *Config) applyDefaults() {
	if c.MaxNonPrimitiveArrayLength == 0 {
		c.MaxNonPrimitiveArrayLength = DefaultMaxNonPrimitiveArrayLength
	}
	if c.ParallelInstanceThreshold == 0 {
		c.ParallelInstanceThreshold = DefaultParallelInstanceThreshold
	}
	if c.Device == nil {
		c.Device = device.Default()
	} else if len(c.Device.Timings) == 0 {
		c.Device.Timings = device.Default().Timings
	}
	for i := range c.Members {
		if c.Members[i].MaxDegreeOfParallelism == 0 {
			c.Members[i].MaxDegreeOfParallelism = 1
		}
	}
}

// Validate checks the configuration values.
//
func (c *Config) Validate() error {
	for _, m := range c.Members {
		if m.Name == "" {
			return errors.New("member configuration without a name")
		}
		if m.MaxDegreeOfParallelism < 1 || m.MaxRecursionDepth < 0 {
			return errors.Errorf("member %s: invalid instance counts", m.Name)
		}
	}
	if c.MaxNonPrimitiveArrayLength < 0 || c.ParallelInstanceThreshold < 0 {
		return errors.New("negative threshold")
	}
	return c.Device.Validate()
}

// Member returns the configuration of the named member. An exact match takes
// precedence over the longest matching prefix pattern. Members without a
// configuration get a single instance.
//
func (c *Config) Member(name string) MemberConfig {
	best := -1
	var bestLen int
	for i, m := range c.Members {
		if m.Name == name {
			return m
		}
		if p := strings.TrimSuffix(m.Name, "*"); p != m.Name && strings.HasPrefix(name, p) && len(p) >= bestLen {
			best, bestLen = i, len(p)
		}
	}
	if best >= 0 {
		m := c.Members[best]
		m.Name = name
		return m
	}
	return MemberConfig{Name: name, MaxDegreeOfParallelism: 1}
}

// SetMember adds or replaces the configuration of a member.
//
func (c *Config) SetMember(m MemberConfig) {
	if m.MaxDegreeOfParallelism == 0 {
		m.MaxDegreeOfParallelism = 1
	}
	for i := range c.Members {
		if c.Members[i].Name == m.Name {
			c.Members[i] = m
			return
		}
	}
	c.Members = append(c.Members, m)
}
