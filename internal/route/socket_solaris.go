// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build solaris

package route

import (
	"io"

	"golang.org/x/sys/unix"

	"grimm.is/zoneinit/internal/errors"
)

type routeSocket struct {
	fd int
}

func openRouteSocket() (io.WriteCloser, error) {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_INET)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "open routing socket")
	}
	return &routeSocket{fd: fd}, nil
}

func (s *routeSocket) Write(p []byte) (int, error) {
	return unix.Write(s.fd, p)
}

func (s *routeSocket) Close() error {
	return unix.Close(s.fd)
}
