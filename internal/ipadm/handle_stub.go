// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux && !solaris

package ipadm

import (
	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/logging"
)

func newHandle(log *logging.Logger) (Handle, error) {
	return nil, errors.New(errors.KindUnavailable, "no IP configuration provider for this platform")
}
