// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitExecArgs(t *testing.T) {
	path, argv, env := initExecArgs([]string{"/usr/lib/brand/lx/lx_boot", "-v", "console"})

	assert.Equal(t, "/sbin/init", path)
	assert.Equal(t, []string{"init", "-v", "console"}, argv)
	assert.Equal(t, []string{"container=zone"}, env)
}

func TestInitExecArgsEmptyArgv(t *testing.T) {
	path, argv, env := initExecArgs(nil)

	assert.Equal(t, "/sbin/init", path)
	assert.Equal(t, []string{"init"}, argv)
	assert.Equal(t, []string{"container=zone"}, env)
}

func TestInitExecArgsDoesNotMutateInput(t *testing.T) {
	in := []string{"/sbin/zoneinit", "boot"}
	_, argv, _ := initExecArgs(in)

	assert.Equal(t, "/sbin/zoneinit", in[0])
	assert.Equal(t, "init", argv[0])
}
