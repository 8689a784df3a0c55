// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package logging provides a leveled console logger.
//
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pterm/pterm"
)

// Log levels.
//
const (
	LevelSilent = iota
	LevelError
	LevelWarning
	LevelVerbose
)

var (
	infoStyle  = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	infoColor  = pterm.FgLightGreen
	warnStyle  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	warnColor  = pterm.FgYellow
	errorStyle = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	errorColor = pterm.FgRed
)

// Logger prints tagged messages. It is safe for concurrent use.
//
type Logger struct {
	Level int

	m        sync.Mutex
	w        io.Writer
	warnings int
	errors   int
}

// New returns a logger writing to w at the given level. If w is nil, output
// goes to stdout.
//
func New(w io.Writer, level int) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{Level: level, w: w}
}

func (l *Logger) print(level int, style *pterm.Style, color pterm.Color, tag, msg string) {
	l.m.Lock()
	defer l.m.Unlock()
	switch level {
	case LevelWarning:
		l.warnings++
	case LevelError:
		l.errors++
	}
	if l.Level < level {
		return
	}
	fmt.Fprintln(l.w, style.Sprint(tag)+color.Sprint(" "+msg))
}

// Infof prints an informational message.
//
func (l *Logger) Infof(format string, args ...interface{}) {
	l.print(LevelVerbose, infoStyle, infoColor, "Info", fmt.Sprintf(format, args...))
}

// Warnf prints a warning.
//
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.print(LevelWarning, warnStyle, warnColor, "Warning", fmt.Sprintf(format, args...))
}

// Error prints an error.
//
func (l *Logger) Error(tag string, err error) {
	l.print(LevelError, errorStyle, errorColor, tag+" Error", err.Error())
}

// Counts returns the number of warnings and errors logged so far, including
// the ones filtered out by the log level.
//
func (l *Logger) Counts() (warnings, errors int) {
	l.m.Lock()
	defer l.m.Unlock()
	return l.warnings, l.errors
}
