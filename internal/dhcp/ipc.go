// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dhcp

import (
	"encoding/binary"
	"io"

	"grimm.is/zoneinit/internal/errors"
)

// Agent IPC wire format. Requests and replies are fixed-size structs in
// host byte order, carried over a loopback TCP connection.
const (
	ifnameSize = 32

	// request: length, message type, timeout, ifname, data type,
	// data length.
	requestSize = 4 + 4 + 4 + ifnameSize + 4 + 4

	// reply: length, message type, return code, data type, data length.
	replySize = 4 + 4 + 4 + 4 + 4

	// typeStart asks the agent to acquire a lease on an interface.
	typeStart = 6

	dataTypeNone = 0
)

// encodeStart builds a start request for iface with the given IPC
// timeout in seconds.
func encodeStart(iface string, timeoutSec int32) ([]byte, error) {
	if len(iface) >= ifnameSize {
		return nil, errors.Errorf(errors.KindValidation, "interface name %q too long", iface)
	}
	buf := make([]byte, requestSize)
	binary.NativeEndian.PutUint32(buf[0:4], requestSize)
	binary.NativeEndian.PutUint32(buf[4:8], typeStart)
	binary.NativeEndian.PutUint32(buf[8:12], uint32(timeoutSec))
	copy(buf[12:12+ifnameSize], iface)
	binary.NativeEndian.PutUint32(buf[44:48], dataTypeNone)
	return buf, nil
}

// decodeReply reads one reply and returns the agent's return code.
func decodeReply(r io.Reader) (int32, error) {
	buf := make([]byte, replySize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "short reply from agent")
	}
	return int32(binary.NativeEndian.Uint32(buf[8:12])), nil
}
