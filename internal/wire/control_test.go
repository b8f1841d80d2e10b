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
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWriteControlFrameLengthExcludesHeader(t *testing.T) {
	payload := []byte(`{"id":"hello"}`)

	var buf bytes.Buffer
	if err := WriteControlFrame(&buf, payload); err != nil {
		t.Fatalf("WriteControlFrame failed: %v", err)
	}

	got := buf.Bytes()
	length := binary.BigEndian.Uint32(got[0:4])
	if int(length) != len(payload) {
		t.Fatalf("got length %d, want %d (payload-only)", length, len(payload))
	}
	if len(got) != controlHeaderLen+len(payload) {
		t.Fatalf("got frame length %d, want %d", len(got), controlHeaderLen+len(payload))
	}
}

func TestReadControlFrameRoundtrip(t *testing.T) {
	payload := []byte(`{"success":true}`)

	var buf bytes.Buffer
	if err := WriteControlFrame(&buf, payload); err != nil {
		t.Fatalf("WriteControlFrame failed: %v", err)
	}

	frame, err := ReadControlFrame(&buf)
	if err != nil {
		t.Fatalf("ReadControlFrame failed: %v", err)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("got payload %q, want %q", frame.Payload, payload)
	}
}

func TestReadControlFrameTruncatedPayload(t *testing.T) {
	var hdr [controlHeaderLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], 10)
	buf := bytes.NewReader(append(hdr[:], []byte("short")...))

	if _, err := ReadControlFrame(buf); err == nil {
		t.Fatalf("expected error on truncated payload")
	}
}
