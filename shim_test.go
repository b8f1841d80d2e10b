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

package main

import (
	"os"
	"syscall"
	"testing"
)

const mockShimPath = "/bin/sleep"

func TestStartShimContainerIDEmptyFailure(t *testing.T) {
	if _, err := startShim("", "/tmp/io.sock", "/tmp/ctl.sock", 0, ShimConfig{}); err == nil {
		t.Fatalf("expected failure because container id is empty")
	}
}

func TestStartShimSocketPathsEmptyFailure(t *testing.T) {
	if _, err := startShim("c1", "", "", 0, ShimConfig{}); err == nil {
		t.Fatalf("expected failure because socket paths are empty")
	}
}

func TestStartShimSuccessful(t *testing.T) {
	shimConfig := ShimConfig{
		Path: mockShimPath,
	}

	pid, err := startShim("c1", "/tmp/io.sock", "/tmp/ctl.sock", 0, shimConfig)
	if err != nil {
		t.Fatal(err)
	}

	if pid < 0 {
		t.Fatalf("invalid PID %d", pid)
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		t.Fatalf("could not find shim PID %d: %s", pid, err)
	}

	if err := p.Signal(syscall.SIGKILL); err != nil {
		t.Fatalf("could not stop shim PID %d: %s", pid, err)
	}
	p.Wait()
}

func TestStartShimDefaultShimPathUsedWhenUnset(t *testing.T) {
	saved := defaultShimPath
	defaultShimPath = mockShimPath
	defer func() { defaultShimPath = saved }()

	pid, err := startShim("c1", "/tmp/io.sock", "/tmp/ctl.sock", 0, ShimConfig{})
	if err != nil {
		t.Fatal(err)
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		t.Fatalf("could not find shim PID %d: %s", pid, err)
	}
	p.Signal(syscall.SIGKILL)
	p.Wait()
}
