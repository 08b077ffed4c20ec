// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buildenv

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/keycard-access/tools/katool/internal/layout"
	"github.com/keycard-access/tools/katool/internal/partition"
	"github.com/keycard-access/tools/katool/internal/util"
)

const (
	EnvPrefix         = "KATOOL"
	ConfigName        = "katool"
	DefaultProject    = "keycard-access"
	DefaultPartitions = "partitions_singleapp.csv"
	DefaultFlashSize  = "4M"
	DefaultProgName   = "program"
	NoBuildTarget     = "nobuild"
)

// Board describes the target board the way the PlatformIO board manifest
// does (build.mcu, build.partitions, upload.flash_size, ...).
type Board struct {
	MCU              string `mapstructure:"mcu"               json:"mcu"`
	Partitions       string `mapstructure:"partitions"        json:"partitions"`
	FlashSize        string `mapstructure:"flash_size"        json:"flash_size"`
	FlashMode        string `mapstructure:"flash_mode"        json:"flash_mode,omitempty"`
	FlashFreq        string `mapstructure:"flash_freq"        json:"flash_freq,omitempty"`
	BootloaderOffset string `mapstructure:"bootloader_offset" json:"bootloader_offset,omitempty"`
}

// Layout returns the layout parameters of the board.
func (b Board) Layout() (layout.Board, error) {
	lb := layout.Board{MCU: b.MCU}
	if s := strings.TrimSpace(b.BootloaderOffset); s != "" {
		ofs, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return lb, fmt.Errorf("bad board bootloader_offset %q: %w", s, err)
		}
		lb.BootloaderOffset = &ofs
	}
	return lb, nil
}

// Config holds the build environment the commands work in.
type Config struct {
	BuildDir     string   `mapstructure:"build_dir"     json:"build_dir"`
	ProjectDir   string   `mapstructure:"project_dir"   json:"project_dir"`
	PythonExe    string   `mapstructure:"python_exe"    json:"python_exe"`
	ProgName     string   `mapstructure:"prog_name"     json:"prog_name"`
	ProjectName  string   `mapstructure:"project_name"  json:"project_name,omitempty"`
	PioEnv       string   `mapstructure:"pio_env"       json:"pio_env,omitempty"`
	FrameworkDir string   `mapstructure:"framework_dir" json:"framework_dir"`
	EsptoolDir   string   `mapstructure:"esptool_dir"   json:"esptool_dir"`
	Targets      []string `mapstructure:"targets"       json:"targets,omitempty"`
	Board        Board    `mapstructure:"board"         json:"board"`
}

// NoBuild reports whether the build is skipped so the images built
// previously must be flashed.
func (c *Config) NoBuild() bool {
	return slices.Contains(c.Targets, NoBuildTarget)
}

// AppImage returns the name of the application image. PlatformIO names it
// firmware.bin unless PROGNAME was changed from its default.
func (c *Config) AppImage() string {
	if c.ProgName == "" || c.ProgName == DefaultProgName {
		return "firmware.bin"
	}
	return c.ProgName + ".bin"
}

// PartitionsCSV returns the partition table file. The names of the tables
// bundled with ESP-IDF are resolved to their location in the framework.
func (c *Config) PartitionsCSV() string {
	name := c.Board.Partitions
	if name == "" {
		name = DefaultPartitions
	}
	if c.FrameworkDir != "" {
		p := filepath.Join(c.FrameworkDir, "components", "partition_table", name)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p
		}
	}
	if !filepath.IsAbs(name) && c.ProjectDir != "" {
		return filepath.Join(c.ProjectDir, name)
	}
	return name
}

// Esptool returns the location of esptool.py.
func (c *Config) Esptool() string {
	return filepath.Join(c.EsptoolDir, "esptool.py")
}

// flagKeys maps the command line flags to the configuration keys they
// override.
var flagKeys = map[string]string{
	"build-dir":     "build_dir",
	"project-dir":   "project_dir",
	"python":        "python_exe",
	"progname":      "prog_name",
	"framework-dir": "framework_dir",
	"esptool-dir":   "esptool_dir",
	"mcu":           "board.mcu",
	"partitions":    "board.partitions",
	"flash-size":    "board.flash_size",
}

// Flags registers the configuration overriding flags in fs. Pass fs to Load
// after parsing.
func Flags(fs *flag.FlagSet) {
	fs.String("config", "", "configuration `file` (default: katool.yaml in the project directory)")
	fs.String("build-dir", "", "PlatformIO build `directory`")
	fs.String("project-dir", "", "project `directory` (default: found by walking up from the current one)")
	fs.String("python", "", "Python `interpreter` running the ESP-IDF tools")
	fs.String("progname", "", "PlatformIO PROGNAME")
	fs.String("framework-dir", "", "ESP-IDF installation `directory`")
	fs.String("esptool-dir", "", "`directory` containing esptool.py")
	fs.String("mcu", "", "target MCU")
	fs.String("partitions", "", "partition table CSV `file`")
	fs.String("flash-size", "", "flash size")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("build_dir", "")
	v.SetDefault("project_dir", "")
	v.SetDefault("python_exe", "python3")
	v.SetDefault("prog_name", DefaultProgName)
	v.SetDefault("project_name", "")
	v.SetDefault("pio_env", "")
	v.SetDefault("framework_dir", "")
	v.SetDefault("esptool_dir", "")
	v.SetDefault("targets", []string{})
	v.SetDefault("board.mcu", partition.DefaultMCU)
	v.SetDefault("board.partitions", DefaultPartitions)
	v.SetDefault("board.flash_size", DefaultFlashSize)
	v.SetDefault("board.flash_mode", "")
	v.SetDefault("board.flash_freq", "")
	v.SetDefault("board.bootloader_offset", "")
}

// Load builds the configuration from, in increasing priority: the defaults,
// the configuration file, the KATOOL_* environment variables and the flags
// registered by Flags that were set on the command line. fs may be nil.
func Load(fs *flag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	set := map[string]string{}
	if fs != nil {
		fs.Visit(func(f *flag.Flag) {
			set[f.Name] = f.Value.String()
		})
	}

	projectDir := set["project-dir"]
	if projectDir == "" {
		projectDir = v.GetString("project_dir")
	}
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if projectDir, err = util.FindProjectDir(wd); err != nil {
			return nil, err
		}
	}

	cfgFile := set["config"]
	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case projectDir != "":
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(projectDir)
	}
	if cfgFile != "" || projectDir != "" {
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) || cfgFile != "" {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	for name, key := range flagKeys {
		if val, ok := set[name]; ok {
			v.Set(key, val)
		}
	}
	if v.GetString("project_dir") == "" {
		v.Set("project_dir", projectDir)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.BuildDir == "" && cfg.ProjectDir != "" && cfg.PioEnv != "" {
		cfg.BuildDir = filepath.Join(cfg.ProjectDir, ".pio", "build", cfg.PioEnv)
	}
	return cfg, nil
}
