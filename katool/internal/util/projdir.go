// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ProjectMarkers are the files that identify the root of a firmware project.
var ProjectMarkers = []string{"katool.yaml", "platformio.ini"}

// FindProjectDir walks up from dir looking for one of the ProjectMarkers. It
// returns an empty string if it reaches the file system root without finding
// any of them.
func FindProjectDir(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range ProjectMarkers {
			p := filepath.Join(dir, name)
			fi, err := os.Stat(p)
			if err == nil {
				if !fi.Mode().IsRegular() {
					return "", fmt.Errorf("%s is not a regular file", p)
				}
				return dir, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", err
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
