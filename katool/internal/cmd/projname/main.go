// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package projname

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keycard-access/tools/katool/internal/buildenv"
	"github.com/keycard-access/tools/katool/internal/util"
)

const Descr = "write the project name to project_name.txt"

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
	env := fs.String("e", "", "PlatformIO `environment` (default: pio_env setting)")
	out := fs.String("o", "", "output `file` (default: project_name.txt in the project directory)")
	fs.Parse(args)
	if fs.NArg() != 0 {
		fs.Usage()
		os.Exit(1)
	}

	log := util.NewLog(cmd)
	cfg, err := buildenv.Load(fs)
	log.FatalErr(err)
	if *env != "" {
		cfg.PioEnv = *env
	}
	if cfg.ProjectDir == "" && *out == "" {
		log.Fatal("cannot determine the project directory, use -o or -project-dir")
	}
	name, err := cfg.Project()
	if err != nil {
		log.Warn("%v", err)
	}
	p := *out
	if p == "" {
		p = filepath.Join(cfg.ProjectDir, buildenv.ProjectNameFile)
	}
	log.FatalErr(buildenv.WriteProjectName(p, name))
	log.Info("set to %s in %s", name, p)
}
