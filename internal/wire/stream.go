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

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// streamHeaderLen is the fixed 12-byte header (sequence + length) on the
// proxy's I/O channel. Unlike the control channel, the length field here
// covers the whole frame (header+payload), not just the payload.
const streamHeaderLen = 12

// StreamEOFLength is the frame length (header only, no payload) that marks
// end-of-stream on a sequence.
const StreamEOFLength = streamHeaderLen

// StreamExitLength is the frame length of the single frame that immediately
// follows an EOF marker and carries a one-byte exit status.
const StreamExitLength = streamHeaderLen + 1

// StreamFrame is a single sequenced chunk of stdio traffic exchanged over
// the proxy's I/O socket.
type StreamFrame struct {
	Sequence uint64
	Payload  []byte
}

// IsEOF reports whether the frame is the header-only EOF marker for its
// sequence.
func (f *StreamFrame) IsEOF() bool {
	return len(f.Payload) == 0
}

// WriteStreamFrame writes seq:u64-BE | len:u32-BE | payload, where len is
// streamHeaderLen+len(payload).
func WriteStreamFrame(w io.Writer, seq uint64, payload []byte) error {
	hdr := make([]byte, streamHeaderLen)
	binary.BigEndian.PutUint64(hdr[0:8], seq)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(streamHeaderLen+len(payload)))

	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write stream header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write stream payload: %w", err)
	}
	return nil
}

// WriteStreamExit writes the EOF marker for seq followed immediately by the
// one-byte exit-status frame, as required by the shim's exit protocol.
func WriteStreamExit(w io.Writer, seq uint64, exitCode byte) error {
	if err := WriteStreamFrame(w, seq, nil); err != nil {
		return err
	}
	hdr := make([]byte, streamHeaderLen+1)
	binary.BigEndian.PutUint64(hdr[0:8], seq)
	binary.BigEndian.PutUint32(hdr[8:12], StreamExitLength)
	hdr[12] = exitCode
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write stream exit frame: %w", err)
	}
	return nil
}

// ReadStreamFrame reads one frame from the proxy I/O channel.
func ReadStreamFrame(r io.Reader) (*StreamFrame, error) {
	hdr := make([]byte, streamHeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("read stream header: %w", err)
	}

	seq := binary.BigEndian.Uint64(hdr[0:8])
	length := binary.BigEndian.Uint32(hdr[8:12])
	if length < streamHeaderLen {
		return nil, fmt.Errorf("stream frame length %d shorter than header", length)
	}

	payloadLen := length - streamHeaderLen
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("read stream payload: %w", err)
		}
	}

	return &StreamFrame{Sequence: seq, Payload: payload}, nil
}
