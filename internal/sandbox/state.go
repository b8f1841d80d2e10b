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

package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// stateFileName is the well-known basename of a container's state
// document within its runtime directory.
const stateFileName = "state.json"

// StateFile is the JSON document persisted for each container. Pid is the
// OCI-visible process id: the hypervisor's until start records the shim's
// pid in its place. HypervisorPid is always the VM process itself, the
// target for pause/resume and the last-resort target for stop/kill.
type StateFile struct {
	OCIVersion        string            `json:"ociVersion"`
	ID                string            `json:"id"`
	Pid               int               `json:"pid"`
	HypervisorPid     int               `json:"hypervisorPid"`
	BundlePath        string            `json:"bundlePath"`
	CommsPath         string            `json:"commsPath"`
	ProcessSocketPath string            `json:"processSocketPath"`
	Status            ContainerStatus   `json:"status"`
	Created           time.Time         `json:"created"`
	Console           string            `json:"console,omitempty"`
	UseSocketConsole  bool              `json:"useSocketConsole,omitempty"`
	Hostname          string            `json:"hostname,omitempty"`
	ShimPath          string            `json:"shimPath,omitempty"`
	Process           Process           `json:"process"`
	Mounts            []Mount           `json:"mounts,omitempty"`
	Annotations       map[string]string `json:"annotations,omitempty"`
	Pod               *PodConfig        `json:"pod,omitempty"`
	VM                StateFileVM       `json:"vm"`
}

// StateFileVM is the subset of VMConfig worth persisting for diagnostics
// and for `list --all`.
type StateFileVM struct {
	HypervisorPath string `json:"hypervisorPath"`
	ImagePath      string `json:"imagePath"`
	KernelPath     string `json:"kernelPath"`
	WorkloadPath   string `json:"workloadPath"`
	KernelParams   string `json:"kernelParams,omitempty"`
}

// StatePath returns the canonical state-file path for a container under
// root: <root>/<container-id>/state.json.
func StatePath(root, containerID string) string {
	return filepath.Join(root, containerID, stateFileName)
}

// RuntimeDir returns the per-container runtime directory: <root>/<id>.
func RuntimeDir(root, containerID string) string {
	return filepath.Join(root, containerID)
}

// WriteState atomically persists state at the canonical path for
// containerID under root, via write-temp-then-rename.
func WriteState(root, containerID string, state *StateFile) error {
	dir := RuntimeDir(root, containerID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return &IOError{Op: "mkdir runtime dir", Err: err}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return &StateError{ContainerID: containerID, Reason: fmt.Sprintf("marshal: %v", err)}
	}

	path := StatePath(root, containerID)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return &IOError{Op: "create temp state file", Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "write temp state file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "close temp state file", Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "rename state file", Err: err}
	}

	return nil
}

// ReadState reads and parses the state file for containerID under root.
// Absent optional fields are tolerated by the nature of encoding/json's
// zero-value defaulting.
func ReadState(root, containerID string) (*StateFile, error) {
	path := StatePath(root, containerID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &StateError{ContainerID: containerID, Reason: "state file does not exist"}
		}
		return nil, &IOError{Op: "read state file", Err: err}
	}

	var state StateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &StateError{ContainerID: containerID, Reason: fmt.Sprintf("unparseable: %v", err)}
	}

	return &state, nil
}

// DeleteState removes the runtime directory tree for containerID,
// including its state file and any sockets left behind. Deleting an
// already-deleted container's state is a no-op success.
func DeleteState(root, containerID string) error {
	dir := RuntimeDir(root, containerID)
	if err := os.RemoveAll(dir); err != nil {
		return &IOError{Op: "remove runtime dir", Err: err}
	}
	return nil
}

// ProcessAlive reports whether pid is alive by probing it with signal 0,
// the kernel-reported liveness check.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// EffectiveStatus resolves the reported status for a state file by
// reconciling the stored status against kernel-reported pid liveness: a
// file claiming Running with a dead pid is actually Stopped.
func EffectiveStatus(state *StateFile) ContainerStatus {
	if state.Status == StatusStopped || state.Status == StatusCreated {
		if state.Pid > 0 && !ProcessAlive(state.Pid) && state.Status != StatusCreated {
			return StatusStopped
		}
		return state.Status
	}
	if !ProcessAlive(state.Pid) {
		return StatusStopped
	}
	return state.Status
}
