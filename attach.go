// Copyright (c) 2014,2015,2016 Docker, Inc.
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
	"os"

	"github.com/urfave/cli"

	"github.com/novavm/runtime/internal/sandbox"
)

var attachCommand = cli.Command{
	Name:  "attach",
	Usage: "Attach to the running init process of a container",
	ArgsUsage: `<container-id>

   <container-id> is the name for the instance of the container to attach to.`,
	Description: `The attach command reconnects to the stdio streams of a container's
   already-running init process, without starting a new one.`,
	Action: func(context *cli.Context) error {
		if !context.Args().Present() {
			return fmt.Errorf("missing container ID")
		}

		return attach(context.Args().First())
	},
}

// attach reopens the shim's I/O socket set for the container's existing
// process (createToken=false), reusing the pod's already-allocated
// ioBase rather than minting a new stream pair as exec does.
func attach(containerID string) error {
	state, err := getExistingContainerInfo(containerID)
	if err != nil {
		return err
	}

	if sandbox.EffectiveStatus(state) != sandbox.StatusRunning {
		return fmt.Errorf("container %s is not running, cannot attach", containerID)
	}

	ioSocketPath := state.ProcessSocketPath
	if ioSocketPath == "" {
		return fmt.Errorf("container %s has no process socket recorded", containerID)
	}

	pid, err := startShim(containerID, ioSocketPath, ioSocketPath, 0, ShimConfig{})
	if err != nil {
		return err
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	if _, err := p.Wait(); err != nil {
		return fmt.Errorf("attach process wait: %s", err)
	}

	return nil
}
