// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partitions

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/keycard-access/tools/katool/internal/buildenv"
	"github.com/keycard-access/tools/katool/internal/flashimg"
	"github.com/keycard-access/tools/katool/internal/proc"
	"github.com/keycard-access/tools/katool/internal/util"
)

const Descr = "compute the flash layout and the build environment patch"

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
	strict := fs.Bool(
		"strict", false,
		"fail if sdkconfig.json is missing instead of skipping with a warning",
	)
	noBuild := fs.Bool(
		"nobuild", false,
		"compilation is skipped, flash the images built before\n"+
			"(implied by the nobuild target in the configuration)",
	)
	merge := fs.Bool("merge", true, "register the mergebin target")
	format := fs.String("format", "json", "patch `format`: json or yaml")
	out := fs.String("o", "", "write the patch to `file` instead of the standard output")
	verbosity := fs.Int("v", 0, "trace `level`")
	fs.Parse(args)
	if fs.NArg() != 0 {
		fs.Usage()
		os.Exit(1)
	}

	log := newLog(cmd, *out)
	cfg, err := buildenv.Load(fs)
	log.FatalErr(err)
	tr := util.Tracer(cmd, *verbosity)
	tr.V(1).Info("configuration", "config", cfg)

	fw, err := flashimg.Resolve(
		context.Background(), cfg,
		flashimg.Options{
			Strict: *strict,
			Runner: &proc.Exec{Log: tr},
			Log:    log,
		},
	)
	if errors.Is(err, flashimg.ErrSkipped) {
		return
	}
	log.FatalErr(err)

	if err := fw.Check(log); err != nil {
		log.Warn("%v", err)
	}
	log.Info("FLASH_EXTRA_IMAGES %v", fw.Extra)
	log.Info("ESP32_APP_OFFSET %s", fw.Layout.BootApp.Hex())

	nb := *noBuild || cfg.NoBuild()
	if !nb {
		log.Info("build is not skipped, all partitions will be built and flashed, I hope.")
	}
	patch := fw.Patch(cfg, nb, *merge)

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		log.FatalErr(err)
		defer f.Close()
		w = f
	}
	log.FatalErr(patch.Encode(w, *format))
}

// newLog returns the command log. The info lines share the standard output
// with the patch only if the patch is written to a file.
func newLog(cmd, patchFile string) *util.Log {
	log := util.NewLog(cmd)
	if patchFile == "" {
		log.Out = os.Stderr
	}
	return log
}
