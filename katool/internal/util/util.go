// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func Fatal(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

// Log prints the build diagnostics of a command. Every line has the form
//
//	<prefix>: <severity>, <message>
//
// Info lines go to Out, warnings and errors to Err.
type Log struct {
	Prefix string
	Out    io.Writer
	Err    io.Writer
}

// NewLog returns a Log that writes to the standard output and error.
func NewLog(prefix string) *Log {
	return &Log{Prefix: prefix, Out: os.Stdout, Err: os.Stderr}
}

func (l *Log) print(w io.Writer, severity, f string, args []any) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "%s: %s, %s\n", l.Prefix, severity, fmt.Sprintf(f, args...))
}

func (l *Log) Info(f string, args ...any) {
	l.print(l.Out, "info", f, args)
}

func (l *Log) Warn(f string, args ...any) {
	l.print(l.Err, "warning", f, args)
}

func (l *Log) Error(f string, args ...any) {
	l.print(l.Err, "error", f, args)
}

// Dump copies the captured output of a tool to the error stream, without the
// prefix, skipping it if empty.
func (l *Log) Dump(out string) {
	if l.Err == nil || strings.TrimSpace(out) == "" {
		return
	}
	io.WriteString(l.Err, out)
	if !strings.HasSuffix(out, "\n") {
		io.WriteString(l.Err, "\n")
	}
}

// Fatal prints an error line and exits the program.
func (l *Log) Fatal(f string, args ...any) {
	l.Error(f, args...)
	os.Exit(1)
}

// FatalErr prints err as an error line and exits the program if err != nil.
func (l *Log) FatalErr(err error) {
	if err == nil {
		return
	}
	l.Fatal("%v", err)
}
