// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import "sort"

// WarningCode identifies the kind of a Warning.
//
type WarningCode int

// Warning codes.
//
const (
	// WarnLossyCast is issued for explicit casts that may lose information.
	WarnLossyCast WarningCode = iota
	// WarnThrowOmitted is issued for throw statements, which are dropped.
	WarnThrowOmitted
	// WarnOversizedArray is issued for large arrays of non-primitive
	// elements.
	WarnOversizedArray
	// WarnRecursionDepth is issued for recursive calls in the deepest
	// instance of a member. Such calls never complete.
	WarnRecursionDepth
)

var warningNames = [...]string{
	WarnLossyCast:      "lossy cast",
	WarnThrowOmitted:   "throw omitted",
	WarnOversizedArray: "oversized array",
	WarnRecursionDepth: "recursion depth",
}

func (c WarningCode) String() string {
	if int(c) < len(warningNames) {
		return warningNames[c]
	}
	return "warning"
}

// Warning is a non-fatal transformation issue. Some warnings denote hardware
// that does not behave like the source program.
//
type Warning struct {
	Code    WarningCode
	Member  string
	Message string
}

func (w Warning) String() string {
	return w.Member + ": " + w.Code.String() + ": " + w.Message
}

// sortWarnings sorts ws by member, code and message, and removes duplicates.
func sortWarnings(ws []Warning) []Warning {
	sort.Slice(ws, func(i, j int) bool {
		a, b := ws[i], ws[j]
		if a.Member != b.Member {
			return a.Member < b.Member
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
	out := ws[:0]
	for _, w := range ws {
		if len(out) > 0 && w == out[len(out)-1] {
			continue
		}
		out = append(out, w)
	}
	return out
}
