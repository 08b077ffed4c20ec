// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mergebin

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/marcinbor85/gohex"

	"github.com/keycard-access/tools/katool/internal/buildenv"
)

// ErrOverlap is returned by Flatten if two images share a flash region.
var ErrOverlap = errors.New("overlapping images")

// ErrTooLarge is returned by Flatten if the merged image would not fit in the
// largest flash an ESP32 can address, usually because of a mistyped offset.
var ErrTooLarge = errors.New("merged image larger than the flash")

// MaxSize is the largest merged image Flatten writes.
const MaxSize = 128 << 20

// ParsePad returns the pad byte given on the command line.
func ParsePad(v uint) (byte, error) {
	b, err := safecast.ToUint8(v)
	if err != nil {
		return 0, fmt.Errorf("bad pad byte %#x", v)
	}
	return b, nil
}

type Section struct {
	Paddr uint64 // location of the image in the Flash
	Name  string // file the data was read from
	Data  []byte
}

func (s *Section) End() uint64 {
	return s.Paddr + uint64(len(s.Data))
}

type Sections []*Section

// ParseImage parses the OFFSET:FILE image description.
func ParseImage(descr string) (buildenv.Image, error) {
	i := strings.IndexByte(descr, ':')
	if i <= 0 || i == len(descr)-1 {
		return buildenv.Image{}, fmt.Errorf("bad image '%s', want OFFSET:FILE", descr)
	}
	return buildenv.Image{Offset: descr[:i], Path: descr[i+1:]}, nil
}

// ReadImages reads the binary files of the images and returns them as a slice
// of sections.
func ReadImages(imgs []buildenv.Image) (Sections, error) {
	ss := make(Sections, len(imgs))
	for k, img := range imgs {
		s := &Section{Name: img.Path}
		var err error
		s.Paddr, err = strconv.ParseUint(img.Offset, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad offset in '%s': %s", img, err)
		}
		s.Data, err = os.ReadFile(img.Path)
		if err != nil {
			return nil, err
		}
		ss[k] = s
	}
	return ss, nil
}

// SortByPaddr orders the sections by flash address. Sections at the same
// address keep their order.
func (ss Sections) SortByPaddr() {
	slices.SortStableFunc(ss, func(a, b *Section) int {
		return cmp.Compare(a.Paddr, b.Paddr)
	})
}

// Size returns the size of the flattened image starting at base.
func (ss Sections) Size(base uint64) uint64 {
	var end uint64
	for _, s := range ss {
		end = max(end, s.End())
	}
	if end < base {
		return 0
	}
	return end - base
}

// Flatten sorts the sections by address and writes them to w as one image
// starting at the base address. The gaps between sections, and between base
// and the first section, are filled with pad. Images larger than MaxSize are
// rejected before anything is written.
func (ss Sections) Flatten(w io.Writer, base uint64, pad byte) (n int, err error) {
	if size := ss.Size(base); size > MaxSize {
		err = fmt.Errorf("flatten: %d bytes from %#x: %w", size, base, ErrTooLarge)
		return
	}
	ss.SortByPaddr()
	pa := base
	var padCache []byte
	for _, s := range ss {
		if s.Paddr < pa {
			if pa == base {
				err = fmt.Errorf("flatten: %s at %#x is below the base address %#x", s.Name, s.Paddr, base)
			} else {
				err = fmt.Errorf("flatten: %s at %#x: %w", s.Name, s.Paddr, ErrOverlap)
			}
			return
		}
		var m int
		if gap := int(s.Paddr - pa); gap != 0 {
			m, err = w.Write(PadBytes(&padCache, gap, pad))
			n += m
			pa += uint64(m)
			if err != nil {
				return
			}
		}
		m, err = w.Write(s.Data)
		n += m
		pa += uint64(m)
		if err != nil {
			return
		}
	}
	return
}

// WriteHex writes the sections in the Intel HEX format.
func (ss Sections) WriteHex(w io.Writer) error {
	ss.SortByPaddr()
	mem := gohex.NewMemory()
	for _, s := range ss {
		addr, err := safecast.ToUint32(s.Paddr)
		if err != nil {
			return fmt.Errorf("hex: %s: the address %#x doesn't fit in 32 bits", s.Name, s.Paddr)
		}
		if _, err := safecast.ToUint32(s.End()); err != nil {
			return fmt.Errorf("hex: %s ends above 4 GiB", s.Name)
		}
		if err := mem.AddBinary(addr, s.Data); err != nil {
			return fmt.Errorf("hex: %s: %w", s.Name, err)
		}
	}
	return mem.DumpIntelHex(w, 16)
}

// PadBytes returns n pad bytes. The buffer kept in cache is reused by the
// following calls with the same pad byte.
func PadBytes(cache *[]byte, n int, pad byte) []byte {
	if len(*cache) < n || (n > 0 && (*cache)[0] != pad) {
		*cache = bytes.Repeat([]byte{pad}, n)
	}
	return (*cache)[:n]
}
