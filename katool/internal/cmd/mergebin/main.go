// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mergebin

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/keycard-access/tools/katool/internal/buildenv"
	"github.com/keycard-access/tools/katool/internal/flashimg"
	"github.com/keycard-access/tools/katool/internal/mergebin"
	"github.com/keycard-access/tools/katool/internal/proc"
	"github.com/keycard-access/tools/katool/internal/util"
)

const Descr = "merge the bootloader, partition table and application images into one"

func Main(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\n  %s [OPTIONS] [OFFSET:FILE ...]\n"+
				"Without images the layout of the configured build is used.\n"+
				"Options:\n",
			cmd,
		)
		fs.PrintDefaults()
	}
	buildenv.Flags(fs)
	run := fs.Bool("run", false, "run esptool.py merge_bin")
	native := fs.Bool("native", false, "merge the images without esptool.py")
	out := fs.String("o", "", "output `file` (default: merged.bin in the build directory)")
	hexOut := fs.String("hex", "", "also write the merged image in the Intel HEX format to `file`")
	pad := fs.Uint(
		"pad", 0xff,
		"pad `byte` used to fill gaps between images",
	)
	verbosity := fs.Int("v", 0, "trace `level`")
	fs.Parse(args)
	if *run && *native {
		util.Fatal("%s: -run and -native are mutually exclusive", cmd)
	}
	padByte, err := mergebin.ParsePad(*pad)
	if err != nil {
		util.Fatal("%s: %v", cmd, err)
	}

	log := util.NewLog(cmd)
	cfg, err := buildenv.Load(fs)
	log.FatalErr(err)
	tr := util.Tracer(cmd, *verbosity)
	runner := &proc.Exec{Log: tr}
	ctx := context.Background()

	var imgs []buildenv.Image
	for _, a := range fs.Args() {
		img, err := mergebin.ParseImage(a)
		log.FatalErr(err)
		imgs = append(imgs, img)
	}
	if len(imgs) == 0 {
		fw, err := flashimg.Resolve(
			ctx, cfg,
			flashimg.Options{Strict: true, Runner: runner, Log: log},
		)
		log.FatalErr(err)
		imgs = fw.All()
	}

	c := mergebin.NewCommand(cfg, imgs)
	if *out != "" {
		c.Output = *out
	}
	switch {
	case *native:
		ss, err := mergebin.ReadImages(imgs)
		log.FatalErr(err)
		of, err := os.Create(c.Output)
		log.FatalErr(err)
		_, err = ss.Flatten(of, 0, padByte)
		log.FatalErr(err)
		log.FatalErr(of.Close())
		log.Info("%s: %d bytes", c.Output, ss.Size(0))
		if *hexOut != "" {
			hf, err := os.Create(*hexOut)
			log.FatalErr(err)
			log.FatalErr(ss.WriteHex(hf))
			log.FatalErr(hf.Close())
			log.Info("%s written", *hexOut)
		}
	case *run:
		if c.FlashMode == mergebin.FlashModePlaceholder {
			c.FlashMode = "keep"
		}
		if c.FlashFreq == mergebin.FlashFreqPlaceholder {
			c.FlashFreq = "keep"
		}
		log.Info(mergebin.Title)
		r, err := runner.Run(ctx, c.Python, c.Args()...)
		log.FatalErr(err)
		os.Stdout.WriteString(r.Stdout)
		log.Dump(r.Stderr)
		if !r.Success() {
			log.Error("esptool.py returned %d", r.ExitCode)
			os.Exit(r.ExitCode)
		}
		if *hexOut != "" {
			ss, err := mergebin.ReadImages([]buildenv.Image{{Offset: "0", Path: c.Output}})
			log.FatalErr(err)
			hf, err := os.Create(*hexOut)
			log.FatalErr(err)
			log.FatalErr(ss.WriteHex(hf))
			log.FatalErr(hf.Close())
		}
	default:
		fmt.Println(c)
		if *hexOut != "" {
			log.Warn("-hex ignored without -run or -native")
		}
	}
}
