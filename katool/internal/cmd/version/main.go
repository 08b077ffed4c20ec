// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/keycard-access/tools/katool/internal/buildenv"
	"github.com/keycard-access/tools/katool/internal/proc"
	"github.com/keycard-access/tools/katool/internal/util"
	"github.com/keycard-access/tools/katool/internal/version"
)

const Descr = "write the `git describe` version to version.txt"

func Main(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\n  %s [OPTIONS]\nOptions:\n",
			cmd,
		)
		fs.PrintDefaults()
	}
	buildenv.Flags(fs)
	out := fs.String("o", "", "version `file` (default: version.txt in the project directory)")
	git := fs.String("git", "", "git `executable` (default: found in PATH)")
	verbosity := fs.Int("v", 0, "trace `level`")
	fs.Parse(args)
	if fs.NArg() != 0 {
		fs.Usage()
		os.Exit(1)
	}

	log := util.NewLog(cmd)
	name := *out
	if name == "" {
		cfg, err := buildenv.Load(fs)
		log.FatalErr(err)
		if cfg.ProjectDir == "" {
			log.Fatal("cannot determine the project directory, use -o or -project-dir")
		}
		name = filepath.Join(cfg.ProjectDir, "version.txt")
	}
	s := &version.Stamper{
		Runner:   &proc.Exec{Log: util.Tracer(cmd, *verbosity)},
		LookPath: exec.LookPath,
		Git:      *git,
		Log:      log,
	}
	_, err := s.Stamp(context.Background(), name)
	log.FatalErr(err)
}
