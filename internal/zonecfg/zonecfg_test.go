// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package zonecfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/zoneinit/internal/errors"
)

const sampleDoc = `
ip_type = "exclusive"

attr {
  name  = "ipv6"
  value = "true"
}

attr {
  name  = "kernel-version"
  value = "4.10.99"
}

net "net0" {
  attr {
    name  = "ips"
    value = "dhcp,10.0.0.5/24"
  }
  attr {
    name  = "primary"
    value = "true"
  }
  attr {
    name  = "gateway"
    value = "10.0.0.1"
  }
}

net "net1" {
  allowed_address = "192.168.7.2/24"
  defrouter       = "192.168.7.1"
}
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc), "testzone")
	require.NoError(t, err)
	assert.Equal(t, "testzone", doc.ZoneName())

	v, err := doc.LookupAttr("ipv6")
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	_, err = doc.LookupAttr("no-such")
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))

	require.NoError(t, doc.Close())
}

func TestAttrValueCap(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc), "testzone")
	require.NoError(t, err)

	// Attribute values are capped at six bytes, enough for boolean
	// literals and version tuples.
	v, err := doc.LookupAttr("kernel-version")
	require.NoError(t, err)
	assert.Equal(t, "4.10.9", v)
}

func TestSharedStackRejected(t *testing.T) {
	_, err := Parse([]byte(`ip_type = "shared"`), "badzone")
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
	assert.Contains(t, err.Error(), "shared IP stacks")
}

func TestInterfaceIteration(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc), "testzone")
	require.NoError(t, err)

	it, err := doc.Interfaces()
	require.NoError(t, err)

	// Iteration is bracketed: the document cannot be closed while an
	// iteration is open, and a second begin is rejected.
	_, err = doc.Interfaces()
	assert.Error(t, err)
	assert.Error(t, doc.Close())

	var phys []string
	for it.Next() {
		rec := it.Record()
		phys = append(phys, rec.Physical)
	}
	assert.Equal(t, []string{"net0", "net1"}, phys)

	require.NoError(t, it.Close())
	require.NoError(t, doc.Close())
}

func TestInterfaceRecordFields(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc), "testzone")
	require.NoError(t, err)

	it, err := doc.Interfaces()
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())
	rec := it.Record()
	assert.Equal(t, "net0", rec.Physical)
	assert.Empty(t, rec.AllowedAddress)

	ips, ok := rec.Attr("ips")
	require.True(t, ok)
	assert.Equal(t, "dhcp,10.0.0.5/24", ips)

	_, ok = rec.Attr("ipv6")
	assert.False(t, ok)

	require.True(t, it.Next())
	rec = it.Record()
	assert.Equal(t, "192.168.7.2/24", rec.AllowedAddress)
	assert.Equal(t, "192.168.7.1", rec.DefRouter)
}

func TestOpenFromDocumentDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "myzone.hcl"), []byte(sampleDoc), 0o644))

	oldDir := DocumentDir
	DocumentDir = dir
	t.Cleanup(func() { DocumentDir = oldDir })
	t.Setenv("ZONENAME", "myzone")

	doc, err := Open()
	require.NoError(t, err)
	assert.Equal(t, "myzone", doc.ZoneName())
}

func TestOpenMissingDocument(t *testing.T) {
	oldDir := DocumentDir
	DocumentDir = t.TempDir()
	t.Cleanup(func() { DocumentDir = oldDir })
	t.Setenv("ZONENAME", "ghost")

	_, err := Open()
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}
