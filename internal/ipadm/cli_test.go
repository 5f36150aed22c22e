// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ipadm

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlumbArgs(t *testing.T) {
	assert.Equal(t, []string{"net0", "plumb"}, plumbArgs("net0", V4))
	assert.Equal(t, []string{"net0", "inet6", "plumb"}, plumbArgs("net0", V6))
}

func TestCreateAddrArgsNamesTheAddressObject(t *testing.T) {
	args := createAddrArgs("net0/addr0", netip.MustParsePrefix("10.0.0.5/24"))
	assert.Equal(t, []string{
		"create-addr", "-t", "-T", "static", "-a", "local=10.0.0.5/24", "net0/addr0",
	}, args)
}

func TestCreateAddrArgsIPv6(t *testing.T) {
	args := createAddrArgs("net0:1/addr1", netip.MustParsePrefix("fe80::2/64"))
	assert.Equal(t, []string{
		"create-addr", "-t", "-T", "static", "-a", "local=fe80::2/64", "net0:1/addr1",
	}, args)
}

func TestSetPropArgs(t *testing.T) {
	args := setPropArgs(TCP, "max_buf", "4194304")
	assert.Equal(t, []string{"set-prop", "-t", "-p", "max_buf=4194304", "tcp"}, args)
}
