// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buildenv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	PlatformIOIni     = "platformio.ini"
	ProjectNameOption = "custom_project_name"
	ProjectNameFile   = "project_name.txt"
)

// Project returns the name of the project. The project_name setting
// wins, then the custom_project_name option of the PlatformIO environment
// (the [env:NAME] section first, the common [env] section next). The
// DefaultProject name is returned if none is set. A broken platformio.ini is
// reported with the default name.
func (c *Config) Project() (string, error) {
	if c.ProjectName != "" {
		return c.ProjectName, nil
	}
	if c.ProjectDir == "" {
		return DefaultProject, nil
	}
	name, err := pioOption(filepath.Join(c.ProjectDir, PlatformIOIni), c.PioEnv, ProjectNameOption)
	if err != nil || name == "" {
		return DefaultProject, err
	}
	return name, nil
}

func pioOption(iniFile, env, option string) (string, error) {
	// platformio.ini lists (lib_deps, build_flags) continue on indented lines
	v := viper.NewWithOptions(viper.IniLoadOptions(ini.LoadOptions{
		AllowPythonMultilineValues: true,
	}))
	v.SetConfigFile(iniFile)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%s: %w", iniFile, err)
	}
	var sections []string
	if env != "" {
		sections = append(sections, "env:"+env)
	}
	sections = append(sections, "env")
	for _, s := range sections {
		if val := strings.TrimSpace(v.GetString(s + "." + option)); val != "" {
			return val, nil
		}
	}
	return "", nil
}

// WriteProjectName writes name followed by a newline to the file.
func WriteProjectName(file, name string) error {
	return os.WriteFile(file, []byte(name+"\n"), 0o644)
}
