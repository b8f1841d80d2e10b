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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli"

	"github.com/novavm/runtime/internal/sandbox"
)

var psCommand = cli.Command{
	Name:      "ps",
	Usage:     "ps displays the processes running inside a container",
	ArgsUsage: `<container-id> [ps options]`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "format, f",
			Value: "table",
			Usage: "select one of: table|json",
		},
	},
	Action: func(context *cli.Context) error {
		if !context.Args().Present() {
			return fmt.Errorf("missing container ID, should at least provide one")
		}

		var args []string
		if len(context.Args()) > 1 {
			// [1:] removes the container ID.
			args = context.Args()[1:]
		}

		return ps(context.Args().First(), context.String("format"), args)
	},
	SkipArgReorder: true,
}

func ps(containerID, format string, args []string) error {
	if containerID == "" {
		return fmt.Errorf("missing container ID")
	}

	// Checks the MUST and MUST NOT from OCI runtime specification
	state, err := getExistingContainerInfo(containerID)
	if err != nil {
		return err
	}

	if sandbox.EffectiveStatus(state) != sandbox.StatusRunning {
		return fmt.Errorf("container %s is not running", containerID)
	}

	if len(args) == 0 {
		args = []string{"-ef"}
	}

	proxy, err := sandbox.ConnectProxy(state.CommsPath, runtimeLog)
	if err != nil {
		return err
	}
	defer proxy.Close()

	output, err := proxy.Ps(containerID, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if format == "json" {
		encoded, err := json.Marshal(struct {
			PsOut string `json:"psOut"`
		}{output})
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Print(output)

	return nil
}
