// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proc runs the external tools (parttool.py, esptool.py, git) used by
// the build.
package proc

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/go-logr/logr"
)

// Result is the outcome of a process that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner runs a command and captures its output. A non-zero exit status is
// reported in Result, not as an error. The error is reserved for commands that
// could not be started at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Func adapts an ordinary function to the Runner interface.
type Func func(ctx context.Context, name string, args ...string) (Result, error)

func (f Func) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return f(ctx, name, args...)
}

// Exec runs commands as operating system processes.
type Exec struct {
	Log logr.Logger
	Dir string // working directory, current one if empty
}

func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = e.Dir
	c.Stdout = &stdout
	c.Stderr = &stderr
	e.Log.V(1).Info("exec", "cmd", name, "args", args)
	err := c.Run()
	r := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			e.Log.V(1).Info("exec failed", "cmd", name, "err", err.Error())
			return r, err
		}
		r.ExitCode = ee.ProcessState.ExitCode()
	}
	e.Log.V(2).Info("exec done", "cmd", name, "exit", r.ExitCode, "stdout", r.Stdout)
	return r, nil
}
