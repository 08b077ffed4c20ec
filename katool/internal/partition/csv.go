// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partition

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is a row of the partition table CSV file.
type Entry struct {
	Name    string
	Type    string
	Subtype string
	Offset  string // may be empty
	Size    string // may be empty
	Flags   string
}

const entryColumns = 6

// Flashed reports whether the partition is taken care of when the build is
// skipped: its content is either not needed, written from the OTA data image
// or selected by parttool as the boot application.
func (e Entry) Flashed() bool {
	switch e.Type {
	case "data":
		switch e.Subtype {
		case "ota", "nvs", "phy", "nvs_keys":
			return true
		}
	case "app":
		return e.Subtype == "factory" || strings.HasPrefix(e.Subtype, "ota_")
	}
	return false
}

// Warning describes a partition table row that needs the user's attention.
type Warning struct {
	Line  int
	Row   []string // set for malformed rows
	Entry Entry
}

func (w Warning) Malformed() bool {
	return w.Row != nil
}

func (w Warning) String() string {
	if w.Malformed() {
		return fmt.Sprintf("invalid partition table entry: %q", w.Row)
	}
	return fmt.Sprintf(
		"partition %s of type %s (%s) will not be flashed because building is skipped (-t nobuild)!",
		w.Entry.Name, w.Entry.Type, w.Entry.Subtype,
	)
}

// Check scans the partition table read from r and returns a warning for every
// malformed row and for every partition that Flashed reports as not handled.
func Check(r io.Reader) ([]Warning, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	var ws []Warning
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ws, err
		}
		line, _ := cr.FieldPos(0)
		row := make([]string, len(rec))
		for i, f := range rec {
			row[i] = strings.TrimSpace(f)
		}
		if len(row) == 0 || strings.HasPrefix(row[0], "#") {
			continue
		}
		if len(row) != entryColumns {
			ws = append(ws, Warning{Line: line, Row: row})
			continue
		}
		e := Entry{row[0], row[1], row[2], row[3], row[4], row[5]}
		if !e.Flashed() {
			ws = append(ws, Warning{Line: line, Entry: e})
		}
	}
	return ws, nil
}

// CheckFile is like Check but reads the named file.
func CheckFile(name string) ([]Warning, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ws, err := Check(f)
	if err != nil {
		return ws, fmt.Errorf("%s: %w", name, err)
	}
	return ws, nil
}
