// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package zonecfg reads the zone's configuration document.
//
// The document is delivered by the platform as HCL, one file per zone.
// Only exclusive-stack zones are supported; a shared-stack declaration is
// rejected before any network operation happens.
package zonecfg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/zoneinit/internal/errors"
)

// DocumentDir is where the platform drops zone configuration documents.
var DocumentDir = "/etc/zones"

// zoneNameFile is consulted when $ZONENAME is not set.
const zoneNameFile = "/etc/zonename"

// attrValueMax caps attribute values returned by LookupAttr. Big enough
// for boolean literals and kernel version tuples.
const attrValueMax = 6

// iptypeExclusive is the only IP type lx zones support.
const iptypeExclusive = "exclusive"

type attr struct {
	Name  string `hcl:"name"`
	Value string `hcl:"value"`
}

type netBlock struct {
	Physical       string `hcl:"physical,label"`
	AllowedAddress string `hcl:"allowed_address,optional"`
	DefRouter      string `hcl:"defrouter,optional"`
	Attrs          []attr `hcl:"attr,block"`
}

type document struct {
	IPType string     `hcl:"ip_type"`
	Attrs  []attr     `hcl:"attr,block"`
	Nets   []netBlock `hcl:"net,block"`
}

// NetworkInterface is one declared NIC record.
type NetworkInterface struct {
	Physical       string
	AllowedAddress string
	DefRouter      string

	attrs []attr
}

// Attr looks up a resource attribute on the interface record.
func (n NetworkInterface) Attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Document is an open zone configuration document.
type Document struct {
	zone     string
	doc      document
	iterOpen bool
}

// Open locates and parses the configuration document for the current zone.
func Open() (*Document, error) {
	zone, err := zoneName()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(DocumentDir, zone+".hcl")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindNotFound, "could not locate zone config for %q", zone)
	}
	return Parse(data, zone)
}

// Parse decodes a configuration document from raw HCL.
func Parse(data []byte, zone string) (*Document, error) {
	var doc document
	if err := hclsimple.Decode(zone+".hcl", data, nil, &doc); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "zone config for %q", zone)
	}

	if doc.IPType != iptypeExclusive {
		return nil, errors.New(errors.KindValidation, "lx zones do not support shared IP stacks")
	}

	return &Document{zone: zone, doc: doc}, nil
}

// ZoneName returns the name of the zone this document belongs to.
func (d *Document) ZoneName() string {
	return d.zone
}

// LookupAttr returns a zone-wide attribute value, capped at six bytes.
func (d *Document) LookupAttr(name string) (string, error) {
	for _, a := range d.doc.Attrs {
		if a.Name == name {
			v := a.Value
			if len(v) > attrValueMax {
				v = v[:attrValueMax]
			}
			return v, nil
		}
	}
	return "", errors.Errorf(errors.KindNotFound, "no such attribute %q", name)
}

// Interfaces begins iteration over the declared network interfaces. The
// iteration must be ended with Close on the iterator.
func (d *Document) Interfaces() (*InterfaceIter, error) {
	if d.iterOpen {
		return nil, errors.New(errors.KindConflict, "interface iteration already open")
	}
	d.iterOpen = true
	return &InterfaceIter{doc: d, pos: -1}, nil
}

// Close releases the document.
func (d *Document) Close() error {
	if d.iterOpen {
		return errors.New(errors.KindConflict, "interface iteration still open")
	}
	return nil
}

// InterfaceIter walks the interface records in declaration order.
type InterfaceIter struct {
	doc *Document
	pos int
}

// Next advances the iterator, reporting whether a record is available.
func (it *InterfaceIter) Next() bool {
	if it.doc == nil {
		return false
	}
	it.pos++
	return it.pos < len(it.doc.doc.Nets)
}

// Record returns the current interface record.
func (it *InterfaceIter) Record() NetworkInterface {
	n := it.doc.doc.Nets[it.pos]
	return NetworkInterface{
		Physical:       n.Physical,
		AllowedAddress: n.AllowedAddress,
		DefRouter:      n.DefRouter,
		attrs:          n.Attrs,
	}
}

// Close ends the iteration.
func (it *InterfaceIter) Close() error {
	if it.doc == nil {
		return nil
	}
	it.doc.iterOpen = false
	it.doc = nil
	return nil
}

// zoneName determines the current zone's name. The platform exports it in
// the initial environment; older platforms drop it in a file instead.
func zoneName() (string, error) {
	if name := os.Getenv("ZONENAME"); name != "" {
		return name, nil
	}
	data, err := os.ReadFile(zoneNameFile)
	if err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			return name, nil
		}
	}
	return "", errors.New(errors.KindInternal, "could not determine zone name")
}
