// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dut reads the console of a device under test.
package dut

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"regexp"
	"time"

	"go.bug.st/serial"
)

// BootMarker is printed by ESP-IDF when app_main returns.
const BootMarker = "main_task: Returned from app_main()"

const DefaultTimeout = 30 * time.Second

// Environment variables naming the console of the device under test.
const (
	PortEnv = "KATOOL_DUT_PORT"
	BaudEnv = "KATOOL_DUT_BAUD"
)

// ErrTimeout is returned when the expected output did not show up in time.
var ErrTimeout = errors.New("timeout waiting for the device output")

// ErrClosed is returned by WaitFor if the console ends before the expected
// output.
var ErrClosed = errors.New("device console closed")

// Port is the device console. A Read that times out returns 0, nil.
type Port interface {
	io.Reader
	SetReadTimeout(t time.Duration) error
}

// Open opens the serial console of the device.
func Open(name string, baud int) (serial.Port, error) {
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

// StripANSI removes the terminal escape sequences (colors) from line.
func StripANSI(line []byte) []byte {
	return ansiEscape.ReplaceAll(line, nil)
}

// pollInterval limits a single blocking read so the deadline is checked
// regularly.
const pollInterval = 100 * time.Millisecond

// Scanner splits the console output into lines.
type Scanner struct {
	port      Port
	timeout   time.Duration
	stripANSI bool
	used      bool
	err       error
	now       func() time.Time
}

// NewScanner returns a scanner that reads p for at most timeout.
func NewScanner(p Port, timeout time.Duration, stripANSI bool) *Scanner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scanner{port: p, timeout: timeout, stripANSI: stripANSI, now: time.Now}
}

// Lines returns the sequence of console lines, without the line terminator.
// The sequence ends when the timeout elapses (Err returns ErrTimeout), the
// port reports an error or the consumer stops. It can be ranged over once; a
// second call returns an empty sequence.
func (s *Scanner) Lines() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if s.used {
			return
		}
		s.used = true
		deadline := s.now().Add(s.timeout)
		var (
			pending []byte
			buf     = make([]byte, 1024)
		)
		emit := func(line []byte) bool {
			line = bytes.TrimRight(line, "\r")
			if s.stripANSI {
				line = StripANSI(line)
			}
			return yield(line)
		}
		for {
			left := deadline.Sub(s.now())
			if left <= 0 {
				s.err = ErrTimeout
				return
			}
			if err := s.port.SetReadTimeout(min(left, pollInterval)); err != nil {
				s.err = err
				return
			}
			n, err := s.port.Read(buf)
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := bytes.Clone(pending[:i])
				pending = pending[i+1:]
				if !emit(line) {
					return
				}
			}
			if err != nil {
				if len(pending) != 0 && !emit(pending) {
					return
				}
				if !errors.Is(err, io.EOF) {
					s.err = err
				}
				return
			}
		}
	}
}

// Err returns the reason the line sequence ended, nil if the port was
// closed or the consumer stopped.
func (s *Scanner) Err() error {
	return s.err
}

// WaitFor reads p until a line containing marker shows up and returns that
// line. It returns ErrTimeout if the marker was not seen in time.
func WaitFor(p Port, marker []byte, timeout time.Duration, stripANSI bool) ([]byte, error) {
	s := NewScanner(p, timeout, stripANSI)
	for line := range s.Lines() {
		if bytes.Contains(line, marker) {
			return line, nil
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return nil, ErrClosed
}
