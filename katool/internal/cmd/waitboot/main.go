// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package waitboot

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/keycard-access/tools/katool/internal/dut"
	"github.com/keycard-access/tools/katool/internal/util"
)

const Descr = "wait for the firmware to print the boot marker on its console"

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
	port := fs.String("port", "", "serial console `device` (default: $KATOOL_DUT_PORT)")
	baud := fs.Int("baud", 115200, "console baud `rate`")
	timeout := fs.Duration("timeout", dut.DefaultTimeout, "give up after `duration`")
	marker := fs.String("marker", dut.BootMarker, "`text` that ends the wait")
	ansi := fs.Bool("ansi", false, "keep the terminal escape sequences in the console output")
	fs.Parse(args)
	if fs.NArg() != 0 {
		fs.Usage()
		os.Exit(1)
	}

	log := util.NewLog(cmd)
	name := *port
	if name == "" {
		name = os.Getenv(dut.PortEnv)
	}
	if name == "" {
		log.Fatal("no serial port, use -port or set %s", dut.PortEnv)
	}
	p, err := dut.Open(name, *baud)
	log.FatalErr(err)
	defer p.Close()

	line, err := dut.WaitFor(p, []byte(*marker), *timeout, !*ansi)
	if errors.Is(err, dut.ErrTimeout) {
		p.Close()
		log.Fatal("%q not seen in %v", *marker, *timeout)
	}
	log.FatalErr(err)
	fmt.Printf("%s\n", line)
}
