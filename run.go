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
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var runCommand = cli.Command{
	Name:  "run",
	Usage: "create and run a container",
	ArgsUsage: `<container-id>

   <container-id> is your name for the instance of the container that you
   are starting. The name you provide for the container instance must be unique
   on your host.`,
	Description: `The run command creates an instance of a container for a bundle. The bundle
   is a directory with a specification file named "config.json" and a root
   filesystem.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "bundle, b",
			Value: "",
			Usage: `path to the root of the bundle directory, defaults to the current directory`,
		},
		cli.StringFlag{
			Name:  "console",
			Value: "",
			Usage: "path to a pseudo terminal",
		},
		cli.StringFlag{
			Name:  "console-socket",
			Value: "",
			Usage: "path to an AF_UNIX socket which will receive a file descriptor referencing the master end of the console's pseudoterminal",
		},
		cli.StringFlag{
			Name:  "pid-file",
			Value: "",
			Usage: "specify the file to write the process id to",
		},
		cli.BoolFlag{
			Name:  "detach, d",
			Usage: "detach from the container's process",
		},
	},
	Action: func(context *cli.Context) error {
		return run(context)
	},
}

func run(context *cli.Context) error {
	runtimeConfig, ok := context.App.Metadata["runtimeConfig"].(RuntimeConfig)
	if !ok {
		return errors.New("invalid runtime config")
	}

	containerID := context.Args().First()
	detach := context.Bool("detach")

	console, useSocketConsole, err := setupConsole(context.String("console"), context.String("console-socket"))
	if err != nil {
		return err
	}

	if err := create(containerID,
		context.String("bundle"),
		console,
		useSocketConsole,
		context.String("pid-file"),
		detach,
		runtimeConfig); err != nil {
		return err
	}

	if err := start(containerID); err != nil {
		return err
	}

	if detach {
		return nil
	}

	state, err := getExistingContainerInfo(containerID)
	if err != nil {
		return err
	}

	p, err := os.FindProcess(state.Pid)
	if err != nil {
		return err
	}

	ps, err := p.Wait()
	if err != nil {
		return fmt.Errorf("process state %s: %s", ps.String(), err)
	}

	// delete the container's resources
	return delete(containerID, true)
}
