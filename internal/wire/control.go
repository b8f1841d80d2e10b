// Copyright (c) 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wire implements the two byte-level framings used between the
// runtime, the shim and the proxy daemon: the proxy control channel and the
// proxy I/O (stream) channel.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// controlHeaderLen is the fixed 8-byte header (length + reserved) that
// precedes every control-channel payload. The length field covers the
// payload only.
const controlHeaderLen = 8

// ControlFrame is a single length-prefixed JSON message exchanged with the
// proxy daemon's control socket.
type ControlFrame struct {
	Reserved uint32
	Payload  []byte
}

// WriteControlFrame writes a control-channel frame: u32 length (payload
// only) | u32 reserved | payload bytes.
func WriteControlFrame(w io.Writer, payload []byte) error {
	var hdr [controlHeaderLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(hdr[4:8], 0)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write control header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write control payload: %w", err)
	}
	return nil
}

// ReadControlFrame reads a single control-channel frame from r.
func ReadControlFrame(r io.Reader) (*ControlFrame, error) {
	var hdr [controlHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read control header: %w", err)
	}

	length := binary.BigEndian.Uint32(hdr[0:4])
	reserved := binary.BigEndian.Uint32(hdr[4:8])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("read control payload: %w", err)
		}
	}

	return &ControlFrame{Reserved: reserved, Payload: payload}, nil
}
