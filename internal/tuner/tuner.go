// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tuner widens transport protocol buffers to match what guests
// built for newer kernels expect.
//
// The ceiling depends on the kernel version the zone advertises: guests
// at 3.4.0 or later get a larger maximum. The ceiling must be raised
// before the defaults, otherwise setting a default above the old
// ceiling fails.
package tuner

import (
	"strconv"
	"strings"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/ipadm"
	"grimm.is/zoneinit/internal/logging"
	"grimm.is/zoneinit/internal/zonecfg"
)

const (
	kernelVersionAttr = "kernel-version"

	maxBufSmall = "4194304"
	maxBufLarge = "6291456"

	// Send and receive defaults are twice the historical 524288 base.
	bufDefault = "1048576"
)

// largeBufVersion is the first kernel version that gets the larger
// ceiling.
var largeBufVersion = Version{3, 4, 0}

// Version is a dotted kernel version.
type Version struct {
	Major, Minor, Patch int
}

// ParseVersion reads up to three dotted components; missing components
// are zero. Junk anywhere is an error.
func ParseVersion(s string) (Version, error) {
	var v Version
	if s == "" {
		return v, errors.New(errors.KindValidation, "empty kernel version")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return v, errors.Errorf(errors.KindValidation, "invalid kernel version %q", s)
	}
	dst := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, errors.Errorf(errors.KindValidation, "invalid kernel version %q", s)
		}
		*dst[i] = n
	}
	return v, nil
}

// Compare returns -1, 0 or 1 as v sorts before, equal to or after o.
func (v Version) Compare(o Version) int {
	a := [3]int{v.Major, v.Minor, v.Patch}
	b := [3]int{o.Major, o.Minor, o.Patch}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// protocols in the order they are tuned.
var protocols = []ipadm.Proto{ipadm.TCP, ipadm.UDP, ipadm.SCTP, ipadm.RawIP}

// Normalize raises the buffer ceilings and defaults for every transport
// protocol. A missing or unparseable kernel-version attribute is an
// error; individual property failures are only warned about, since a
// partially tuned stack still works.
func Normalize(doc *zonecfg.Document, h ipadm.Handle, log *logging.Logger) error {
	log = log.WithComponent("tuner")

	kv, err := doc.LookupAttr(kernelVersionAttr)
	if err != nil {
		return errors.Wrap(err, errors.GetKind(err), "could not get kernel version")
	}
	ver, err := ParseVersion(kv)
	if err != nil {
		return err
	}

	maxBuf := maxBufSmall
	if ver.Compare(largeBufVersion) >= 0 {
		maxBuf = maxBufLarge
	}

	for _, proto := range protocols {
		for _, p := range []struct{ prop, value string }{
			{"max_buf", maxBuf},
			{"send_buf", bufDefault},
			{"recv_buf", bufDefault},
		} {
			if err := h.SetProp(proto, p.prop, p.value); err != nil {
				log.WithError(err).Warn("failed to set property",
					"proto", string(proto), "prop", p.prop, "value", p.value)
			}
		}
	}
	return nil
}
