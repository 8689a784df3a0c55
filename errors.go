// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind classifies fatal transformation errors.
//
type ErrorKind int

// Error kinds.
//
const (
	// ErrUnsupported is returned for constructs that have no hardware
	// equivalent.
	ErrUnsupported ErrorKind = iota
	// ErrResource is returned when a static resource limit is exceeded, like
	// the configured number of instances of a member.
	ErrResource
	// ErrExtern is returned for extern methods reachable from an entry point.
	ErrExtern
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupported:
		return "unsupported construct"
	case ErrResource:
		return "resource limit"
	case ErrExtern:
		return "extern method"
	}
	return "error"
}

// Error is a fatal transformation error. Use errors.Cause to get it from an
// error returned by Transform.
//
type Error struct {
	Kind      ErrorKind
	Member    string
	Construct string
	Message   string
}

func (e *Error) Error() string {
	s := e.Member + ": " + e.Kind.String()
	if e.Construct != "" {
		s += " " + e.Construct
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	return s
}

func newError(kind ErrorKind, member, construct, format string, args ...interface{}) error {
	return errors.WithStack(&Error{
		Kind:      kind,
		Member:    member,
		Construct: construct,
		Message:   fmt.Sprintf(format, args...),
	})
}

// construct returns a short description of a syntax node.
func construct(n interface{}) string {
	return strings.TrimPrefix(strings.TrimPrefix(fmt.Sprintf("%T", n), "*"), "ast.")
}
