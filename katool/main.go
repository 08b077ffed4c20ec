// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Katool is the build helper of the keycard-access firmware. It computes the
// ESP32 flash layout for PlatformIO, merges the flash images, stamps the
// version and waits for the firmware to boot on a test board.
package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/keycard-access/tools/katool/internal/cmd/mergebin"
	"github.com/keycard-access/tools/katool/internal/cmd/partitions"
	"github.com/keycard-access/tools/katool/internal/cmd/projname"
	"github.com/keycard-access/tools/katool/internal/cmd/version"
	"github.com/keycard-access/tools/katool/internal/cmd/waitboot"
)

type command struct {
	descr string
	main  func(cmd string, args []string)
}

var commands = map[string]command{
	"mergebin":   {mergebin.Descr, mergebin.Main},
	"partitions": {partitions.Descr, partitions.Main},
	"projname":   {projname.Descr, projname.Main},
	"version":    {version.Descr, version.Main},
	"waitboot":   {waitboot.Descr, waitboot.Main},
}

func usage(w io.Writer) {
	names := slices.Sorted(maps.Keys(commands))
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	fmt.Fprint(w, "Usage:\n  katool COMMAND [ARGUMENTS]\n  katool help COMMAND\n\n")
	fmt.Fprint(w, "The settings are read from katool.yaml in the project directory\n")
	fmt.Fprint(w, "and from the KATOOL_* environment variables.\n\n")
	fmt.Fprint(w, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %-*s  %s\n", width, name, commands[name].descr)
	}
}

// lookup returns the command selected by the katool arguments and the
// arguments to run it with. "help NAME" and "-h NAME" run NAME -h.
func lookup(args []string) (name string, cmdArgs []string, ok bool) {
	if len(args) == 0 {
		return "", nil, false
	}
	name, cmdArgs = args[0], args[1:]
	switch name {
	case "help", "-h", "-help", "--help":
		if len(cmdArgs) == 0 {
			return "", nil, false
		}
		name, cmdArgs = cmdArgs[0], []string{"-h"}
	}
	_, ok = commands[name]
	return name, cmdArgs, ok
}

func main() {
	name, args, ok := lookup(os.Args[1:])
	if !ok {
		usage(os.Stderr)
		if name != "" {
			fmt.Fprintf(os.Stderr, "\nunknown command: %s\n", name)
			os.Exit(1)
		}
		return
	}
	commands[name].main(name, args)
}
