// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !solaris

package route

import (
	"io"

	"grimm.is/zoneinit/internal/errors"
)

// Only solaris exposes a PF_ROUTE raw socket; elsewhere routes go through
// the platform's own handle and this opener is never reached.
func openRouteSocket() (io.WriteCloser, error) {
	return nil, errors.New(errors.KindUnavailable, "routing socket not available on this platform")
}
