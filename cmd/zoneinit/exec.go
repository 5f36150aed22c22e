// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"syscall"

	"grimm.is/zoneinit/internal/console"
	"grimm.is/zoneinit/internal/logging"
)

const initPath = "/sbin/init"

// initExecArgs builds the exec triple for the guest init: our own
// arguments with argv[0] replaced, and a single environment variable.
//
// systemd uses the 'container' variable to detect it is running inside
// a container. It only knows a few well-known values and treats the
// rest as 'other', which is enough to make it behave inside a zone.
func initExecArgs(argv []string) (path string, out []string, env []string) {
	out = make([]string, len(argv))
	copy(out, argv)
	if len(out) == 0 {
		out = []string{""}
	}
	out[0] = "init"
	return initPath, out, []string{"container=zone"}
}

// execInit replaces this process with the guest init. It only returns
// control on failure, in which case the console has to be reopened
// before the error can be logged.
func execInit(argv []string) {
	path, args, env := initExecArgs(argv)
	err := syscall.Exec(path, args, env)

	log := logging.Default()
	if con, cerr := console.Open(console.DevicePath); cerr == nil {
		if cerr := con.Redirect(); cerr == nil {
			log = logging.New(logging.DefaultConfig())
		}
	}
	log.WithError(err).Fatal("execve(" + path + ") failed")
}
