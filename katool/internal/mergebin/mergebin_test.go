// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mergebin

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keycard-access/tools/katool/internal/buildenv"
)

func testConfig() *buildenv.Config {
	return &buildenv.Config{
		BuildDir:   "/b",
		PythonExe:  "python3",
		EsptoolDir: "/pkg/tool-esptoolpy",
		Board:      buildenv.Board{MCU: "esp32", FlashSize: "4M"},
	}
}

func TestCommandString(t *testing.T) {
	imgs := []buildenv.Image{{Offset: "0x10000", Path: "app.bin"}, {Offset: "0x1000", Path: "bootloader.bin"}}
	c := NewCommand(testConfig(), imgs)
	s := c.String()

	assert.True(t, strings.HasPrefix(s,
		`"python3" "/pkg/tool-esptoolpy/esptool.py" --chip esp32 merge_bin --output "/b/merged.bin" `+
			`--flash_mode ${__get_board_flash_mode(__env__)} --flash_freq ${__get_board_f_flash(__env__)} --flash_size 4M `,
	), s)
	i := strings.Index(s, `0x10000 "app.bin"`)
	j := strings.Index(s, `0x1000 "bootloader.bin"`)
	require.GreaterOrEqual(t, i, 0)
	require.GreaterOrEqual(t, j, 0)
	assert.Less(t, i, j)
}

func TestCommandArgs(t *testing.T) {
	cfg := testConfig()
	cfg.Board.FlashMode = "dio"
	cfg.Board.FlashFreq = "40m"
	c := NewCommand(cfg, []buildenv.Image{{Offset: "0x10000", Path: "a b/app.bin"}})
	want := []string{
		"/pkg/tool-esptoolpy/esptool.py", "--chip", "esp32", "merge_bin",
		"--output", "/b/merged.bin",
		"--flash_mode", "dio", "--flash_freq", "40m", "--flash_size", "4M",
		"0x10000", "a b/app.bin",
	}
	if diff := cmp.Diff(want, c.Args()); diff != "" {
		t.Errorf("Args mismatch (-want +got):\n%s", diff)
	}
}

func TestCommandTarget(t *testing.T) {
	imgs := []buildenv.Image{{Offset: "0x10000", Path: "/b/firmware.bin"}, {Offset: "0x1000", Path: "/b/bootloader.bin"}, {Offset: "0x8000", Path: "/b/partitions.bin"}}
	tg := NewCommand(testConfig(), imgs).Target()
	assert.Equal(t, "mergebin", tg.Name)
	assert.Equal(t, "/b/merged.bin", tg.Output)
	assert.Equal(t, []string{"/b/firmware.bin", "/b/bootloader.bin", "/b/partitions.bin"}, tg.Deps)
	assert.Contains(t, tg.Command, `0x8000 "/b/partitions.bin"`)
}

func TestParseImage(t *testing.T) {
	img, err := ParseImage("0x1000:build/bootloader.bin")
	require.NoError(t, err)
	assert.Equal(t, buildenv.Image{Offset: "0x1000", Path: "build/bootloader.bin"}, img)

	img, err = ParseImage("0x1000:C:/b/app.bin")
	require.NoError(t, err)
	assert.Equal(t, "C:/b/app.bin", img.Path)

	for _, bad := range []string{"", "app.bin", ":app.bin", "0x1000:"} {
		_, err := ParseImage(bad)
		assert.Error(t, err, bad)
	}
}

func writeImages(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func TestFlatten(t *testing.T) {
	dir := writeImages(t, map[string][]byte{
		"app.bin":  {0xa1, 0xa2},
		"boot.bin": {0xb1},
		"part.bin": {0xc1, 0xc2, 0xc3},
	})
	ss, err := ReadImages([]buildenv.Image{
		{Offset: "0x8", Path: filepath.Join(dir, "app.bin")},
		{Offset: "0x1", Path: filepath.Join(dir, "boot.bin")},
		{Offset: "4", Path: filepath.Join(dir, "part.bin")},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), ss.Size(0))

	var buf bytes.Buffer
	n, err := ss.Flatten(&buf, 0, 0xff)
	require.NoError(t, err)
	want := []byte{0xff, 0xb1, 0xff, 0xff, 0xc1, 0xc2, 0xc3, 0xff, 0xa1, 0xa2}
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, buf.Bytes())

	buf.Reset()
	_, err = ss.Flatten(&buf, 2, 0xff)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrOverlap)
}

func TestFlattenOverlap(t *testing.T) {
	ss := Sections{
		{Paddr: 0x10, Name: "a", Data: make([]byte, 0x10)},
		{Paddr: 0x18, Name: "b", Data: []byte{1}},
	}
	_, err := ss.Flatten(&bytes.Buffer{}, 0, 0xff)
	require.ErrorIs(t, err, ErrOverlap)
	assert.Contains(t, err.Error(), "b at 0x18")
}

func TestFlattenTooLarge(t *testing.T) {
	ss := Sections{
		{Paddr: 0x1000, Name: "boot.bin", Data: []byte{1}},
		{Paddr: 0xffffffff00, Name: "app.bin", Data: []byte{2}},
	}
	var buf bytes.Buffer
	_, err := ss.Flatten(&buf, 0, 0xff)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, buf.Len())
	assert.Contains(t, err.Error(), "from 0x0")

	// the cap applies to the image size, not to the addresses
	high := Sections{{Paddr: 0xffffffff00, Name: "app.bin", Data: []byte{2}}}
	n, err := high.Flatten(&buf, 0xffffffff00, 0xff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestParsePad(t *testing.T) {
	b, err := ParsePad(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0), b)
	b, err = ParsePad(0xff)
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), b)
	_, err = ParsePad(0x1ff)
	assert.Error(t, err)
}

func TestPadBytes(t *testing.T) {
	var cache []byte
	assert.Equal(t, []byte{0xff, 0xff, 0xff}, PadBytes(&cache, 3, 0xff))
	assert.Equal(t, []byte{0xff}, PadBytes(&cache, 1, 0xff))
	assert.Equal(t, []byte{0, 0}, PadBytes(&cache, 2, 0))
	assert.Empty(t, PadBytes(&cache, 0, 0xff))
}

func TestReadImagesErrors(t *testing.T) {
	_, err := ReadImages([]buildenv.Image{{Offset: "zz", Path: "x.bin"}})
	assert.Error(t, err)
	_, err = ReadImages([]buildenv.Image{{Offset: "0x0", Path: filepath.Join(t.TempDir(), "none.bin")}})
	assert.Error(t, err)
}

func TestWriteHex(t *testing.T) {
	ss := Sections{
		{Paddr: 0x1000, Name: "boot", Data: []byte{1, 2, 3, 4}},
	}
	var buf bytes.Buffer
	require.NoError(t, ss.WriteHex(&buf))
	out := strings.ToUpper(buf.String())
	assert.Contains(t, out, ":0410000001020304E2")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), ":00000001FF"), out)

	big := Sections{{Paddr: 1 << 32, Name: "far", Data: []byte{1}}}
	assert.Error(t, big.WriteHex(&bytes.Buffer{}))
}
