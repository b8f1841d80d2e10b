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

import "fmt"

// ConfigError reports a missing or malformed OCI configuration, an
// unsupported spec version, or a missing required file (image, kernel,
// workload directory).
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// StateError reports a missing, unparseable, or inconsistent state file.
type StateError struct {
	ContainerID string
	Reason      string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error for %q: %s", e.ContainerID, e.Reason)
}

// IOError wraps a socket, pipe, file, or mount failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error during %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a proxy framed-message truncation, a JSON shape
// violation, or a success:false response.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// ExecError reports a hypervisor, shim, or hook process that failed to
// launch or returned a nonzero exit code.
type ExecError struct {
	Program string
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec error running %q: %v", e.Program, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// LifecycleError reports a subcommand invoked in a state incompatible with
// its precondition, e.g. start on an already-Running container.
type LifecycleError struct {
	ContainerID string
	Op          string
	State       ContainerStatus
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("cannot %s container %q: currently %s", e.Op, e.ContainerID, e.State)
}
