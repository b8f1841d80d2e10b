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

// Description: launches the local novavm-shim process that relays a
// container's stdio and signals to the proxy's allocated sockets. Its pid
// becomes the container's recorded OCI process, in place of the
// hypervisor's.

package sandbox

import (
	"os"
	"os/exec"
	"strconv"
)

// defaultShimPath is used when neither the runtime configuration nor the
// caller supplies a shim path.
const defaultShimPath = "/usr/libexec/novavm-shim"

// LaunchShim starts the shim binary wired to ioSocketPath/ctlSocketPath at
// the given stdio sequence base and returns its pid. The caller owns the
// process from here: the container lives exactly as long as the shim's
// relay loop does.
func LaunchShim(shimPath, containerID, ioSocketPath, ctlSocketPath string, ioBase uint64) (int, error) {
	if shimPath == "" {
		shimPath = defaultShimPath
	}

	cmd := exec.Cmd{
		Path: shimPath,
		Args: []string{
			shimPath,
			"--id", containerID,
			"--io-socket", ioSocketPath,
			"--ctl-socket", ctlSocketPath,
			"--io-base", strconv.FormatUint(ioBase, 10),
		},
		Env:    os.Environ(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	if err := cmd.Start(); err != nil {
		return -1, &ExecError{Program: shimPath, Err: err}
	}

	return cmd.Process.Pid, nil
}
