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

var deleteCommand = cli.Command{
	Name:  "delete",
	Usage: "Delete any resources held by one or more containers",
	ArgsUsage: `<container-id> [container-id...]

   <container-id> is the name for the instance of the container.

EXAMPLE:
   If the container id is "ubuntu01" and ` + name + ` list currently shows the
   status of "ubuntu01" as "stopped" the following will delete resources held
   for "ubuntu01" removing "ubuntu01" from the ` + name + ` list of containers:

       # ` + name + ` delete ubuntu01`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "force, f",
			Usage: "forcibly deletes the container if it is still running (stops it first: destroypod, then SIGTERM to the hypervisor)",
		},
	},
	Action: func(context *cli.Context) error {
		args := context.Args()
		if !args.Present() {
			return fmt.Errorf("missing container ID, should at least provide one")
		}

		force := context.Bool("force")
		for _, cID := range []string(args) {
			if err := delete(cID, force); err != nil {
				return err
			}
		}

		return nil
	},
}

func delete(containerID string, force bool) error {
	// Checks the MUST and MUST NOT from OCI runtime specification
	state, err := getExistingContainerInfo(containerID)
	if err != nil {
		return err
	}

	ociSpec, err := parseConfigJSON(state.BundlePath)
	if err != nil {
		return err
	}

	status := sandbox.EffectiveStatus(state)
	if status == sandbox.StatusRunning {
		if !force {
			return fmt.Errorf("container still running, should be stopped")
		}

		hooks := convertHooks(ociSpec.Hooks)
		if err := vci.StopContainer(defaultRootDirectory, containerID, state.Mounts, hooks.Poststop); err != nil {
			return err
		}
	}

	if err := vci.DeleteContainer(defaultRootDirectory, containerID); err != nil {
		return err
	}

	// In order to prevent any file descriptor leak related to cgroups files
	// that have been previously created, we have to remove them before this
	// function returns.
	cgroupsPathList, err := processCgroupsPath(ociSpec)
	if err != nil {
		return err
	}

	for _, cgroupsPath := range cgroupsPathList {
		if err := removeCgroupsPath(cgroupsPath); err != nil {
			return err
		}
	}

	return nil
}

func removeCgroupsPath(cgroupsPath string) error {
	if cgroupsPath == "" {
		runtimeLog.Info("cgroups path not removed because it was empty")
		return nil
	}

	return os.RemoveAll(cgroupsPath)
}
