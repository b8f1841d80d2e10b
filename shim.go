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
	"fmt"

	"github.com/novavm/runtime/internal/sandbox"
)

// defaultShimPath is the path to the novavm-shim binary, used when no
// override is given in the runtime configuration.
var defaultShimPath = "/usr/libexec/novavm-shim"

// ShimConfig holds configuration data related to a shim.
type ShimConfig struct {
	Path string
}

// startShim launches the I/O and signal bridge process for containerID,
// wiring it to the proxy's I/O and control sockets at the given stdio
// sequence base, and returns its pid. The create/start lifecycle path
// forks the same binary directly through sandbox.LaunchShim; this wrapper
// exists for the secondary exec/attach sessions, which pick their shim
// path the same way but don't otherwise touch the sandbox package's
// container lifecycle.
func startShim(containerID, ioSocketPath, ctlSocketPath string, ioBase uint64, config ShimConfig) (int, error) {
	if containerID == "" {
		return -1, fmt.Errorf("container id cannot be empty")
	}

	if ioSocketPath == "" || ctlSocketPath == "" {
		return -1, fmt.Errorf("proxy socket paths cannot be empty")
	}

	shimPath := config.Path
	if shimPath == "" {
		shimPath = defaultShimPath
	}

	return sandbox.LaunchShim(shimPath, containerID, ioSocketPath, ctlSocketPath, ioBase)
}
