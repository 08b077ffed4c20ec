// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version stamps the firmware version taken from the git tags.
package version

import (
	"context"
	"os"
	"strings"

	"github.com/keycard-access/tools/katool/internal/proc"
	"github.com/keycard-access/tools/katool/internal/util"
)

// Unknown is written when the version cannot be determined.
const Unknown = "unknown"

// TagPattern matches the release tags.
const TagPattern = "v*.*.*"

// Stamper writes the version file.
type Stamper struct {
	Runner   proc.Runner
	LookPath func(file string) (string, error) // exec.LookPath
	Git      string                            // git executable, looked up if empty
	Log      *util.Log
}

// Describe returns the output of git describe for the release tags. The
// boolean result is false if git is missing or fails.
func (s *Stamper) Describe(ctx context.Context) (string, bool) {
	git := s.Git
	if git == "" {
		var err error
		if git, err = s.LookPath("git"); err != nil {
			s.Log.Error("unable to find git executable.")
			return "", false
		}
	}
	r, err := s.Runner.Run(ctx, git, "describe", "--tags", "--match", TagPattern)
	if err != nil {
		s.Log.Error("unable to run %s: %v", git, err)
		return "", false
	}
	s.Log.Dump(r.Stderr)
	if !r.Success() {
		s.Log.Error("git describe returned %d", r.ExitCode)
		return "", false
	}
	return r.Stdout, true
}

// Stamp writes the version to the named file, replacing its content, and
// returns what was written. The git describe output is written verbatim,
// Unknown followed by a newline if git cannot tell the version.
func (s *Stamper) Stamp(ctx context.Context, name string) (string, error) {
	content := Unknown + "\n"
	if v, ok := s.Describe(ctx); ok {
		content = v
		s.Log.Info("version set to %s", strings.TrimSpace(v))
	}
	return content, os.WriteFile(name, []byte(content), 0o644)
}
