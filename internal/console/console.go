// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package console acquires the zone console device and points the standard
// output descriptor at it. Init starts with no files open, so the
// relocation onto fd 1 is required on every boot.
package console

import (
	"os"

	"golang.org/x/sys/unix"

	"grimm.is/zoneinit/internal/errors"
)

// DevicePath is the zone console device.
const DevicePath = "/dev/console"

// Console is the open console device.
type Console struct {
	f *os.File
}

// Open opens the console device. It does not touch fd 1; call Redirect for
// that.
func Open(path string) (*Console, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "open %s", path)
	}
	return &Console{f: f}, nil
}

// Redirect points the standard output descriptor at the console device, so
// that every write to stdout lands on the zone console.
func (c *Console) Redirect() error {
	fd := int(c.f.Fd())
	if fd == 1 {
		return nil
	}
	if err := unix.Dup2(fd, 1); err != nil {
		return errors.Wrap(err, errors.KindInternal, "dup2 console onto stdout")
	}
	return nil
}

// closeFD releases a raw descriptor; replaced in tests.
var closeFD = func(fd int) error { return unix.Close(fd) }

// Close releases standard input and output ahead of the process-image
// replacement. The guest init expects to start with no files open. Init
// itself starts with none either, so the console device usually sits on
// fd 0; the file is closed first and its descriptor skipped below so it
// is only released once.
func (c *Console) Close() error {
	fd := int(c.f.Fd())
	err := c.f.Close()
	if fd != 0 {
		closeFD(0)
	}
	if fd != 1 {
		closeFD(1)
	}
	return err
}
