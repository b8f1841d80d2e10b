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

	"github.com/urfave/cli"
)

var stopCommand = cli.Command{
	Name:  "stop",
	Usage: "stop a container without deleting its resources",
	ArgsUsage: `<container-id>

   <container-id> is your name for the instance of the container to stop.`,
	Description: `The stop command asks the VM's guest agent to tear down the container's
   process, then shuts the VM down and unmounts its storage, leaving the
   container's state available for "delete" or "list".`,
	Action: func(context *cli.Context) error {
		if !context.Args().Present() {
			return fmt.Errorf("missing container ID")
		}

		return stopContainerCmd(context.Args().First())
	},
}

func stopContainerCmd(containerID string) error {
	state, err := getExistingContainerInfo(containerID)
	if err != nil {
		return err
	}

	ociSpec, err := parseConfigJSON(state.BundlePath)
	if err != nil {
		return err
	}

	hooks := convertHooks(ociSpec.Hooks)

	return vci.StopContainer(defaultRootDirectory, containerID, state.Mounts, hooks.Poststop)
}
