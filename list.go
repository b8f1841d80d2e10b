// Copyright (c) 2014,2015,2016,2017 Docker, Inc.
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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"github.com/novavm/runtime/internal/sandbox"
)

const formatOptions = `table or json`

// containerState represents the platform agnostic pieces relating to a
// running container's status and state.
type containerState struct {
	Version        string            `json:"ociVersion"`
	ID             string            `json:"id"`
	InitProcessPid int               `json:"pid"`
	Status         string            `json:"status"`
	Bundle         string            `json:"bundle"`
	Created        time.Time         `json:"created"`
	Annotations    map[string]string `json:"annotations,omitempty"`
}

// hypervisorDetails stores details of the hypervisor used to host the
// container.
type hypervisorDetails struct {
	HypervisorPath string `json:"hypervisorPath"`
	ImagePath      string `json:"imagePath"`
	KernelPath     string `json:"kernelPath"`
}

// fullContainerState specifies the core state plus the hypervisor details.
type fullContainerState struct {
	containerState
	hypervisorDetails `json:"hypervisor"`
}

type formatState interface {
	Write(state []fullContainerState, showAll bool, file *os.File) error
}

type formatJSON struct{}
type formatIDList struct{}
type formatTabular struct{}

var defaultOutputFile = os.Stdout

var listCommand = cli.Command{
	Name:  "list",
	Usage: "lists containers started by " + name + " with the given root",
	ArgsUsage: `

Where the given root is specified via the global option "--root"
(default: "` + defaultRootDirectory + `").

EXAMPLE 1:
To list containers created via the default "--root":
       # ` + name + ` list

EXAMPLE 2:
To list containers created using a non-default value for "--root":
       # ` + name + ` --root value list`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "format, f",
			Value: "table",
			Usage: `select one of: ` + formatOptions,
		},
		cli.BoolFlag{
			Name:  "quiet, q",
			Usage: "display only container IDs",
		},
		cli.BoolFlag{
			Name:  "all, a",
			Usage: "display all available information",
		},
	},
	Action: func(context *cli.Context) error {
		s, err := getContainers(context)
		if err != nil {
			return err
		}

		file := defaultOutputFile
		showAll := context.Bool("all")

		if context.Bool("quiet") {
			return (&formatIDList{}).Write(s, showAll, file)
		}

		switch context.String("format") {
		case "table":
			return (&formatTabular{}).Write(s, showAll, file)

		case "json":
			return (&formatJSON{}).Write(s, showAll, file)

		default:
			return fmt.Errorf("invalid format option")
		}
	},
}

func (f *formatIDList) Write(state []fullContainerState, showAll bool, file *os.File) error {
	for _, item := range state {
		if _, err := fmt.Fprintln(file, item.ID); err != nil {
			return err
		}
	}

	return nil
}

func (f *formatTabular) Write(state []fullContainerState, showAll bool, file *os.File) error {
	// values used by runc
	flags := uint(0)
	minWidth := 12
	tabWidth := 1
	padding := 3

	w := tabwriter.NewWriter(file, minWidth, tabWidth, padding, ' ', flags)

	fmt.Fprint(w, "ID\tPID\tSTATUS\tBUNDLE\tCREATED")

	if showAll {
		fmt.Fprint(w, "\tHYPERVISOR\tKERNEL\tIMAGE\n")
	} else {
		fmt.Fprintf(w, "\n")
	}

	for _, item := range state {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s",
			item.ID,
			item.InitProcessPid,
			item.Status,
			item.Bundle,
			item.Created.Format(time.RFC3339Nano))

		if showAll {
			fmt.Fprintf(w, "\t%s\t%s\t%s\n",
				item.HypervisorPath,
				item.KernelPath,
				item.ImagePath)
		} else {
			fmt.Fprintf(w, "\n")
		}
	}

	return w.Flush()
}

func (f *formatJSON) Write(state []fullContainerState, showAll bool, file *os.File) error {
	return json.NewEncoder(file).Encode(state)
}

func getContainers(context *cli.Context) ([]fullContainerState, error) {
	runtimeConfig, ok := context.App.Metadata["runtimeConfig"].(RuntimeConfig)
	if !ok {
		return nil, errors.New("invalid runtime config")
	}

	hvDetails, err := getHypervisorDetails(runtimeConfig)
	if err != nil {
		return nil, err
	}

	states, err := vci.ListContainers(defaultRootDirectory)
	if err != nil {
		return nil, err
	}

	var s []fullContainerState

	for _, state := range states {
		s = append(s, fullContainerState{
			containerState: containerState{
				Version:        state.OCIVersion,
				ID:             state.ID,
				InitProcessPid: state.Pid,
				Status:         string(sandbox.EffectiveStatus(state)),
				Bundle:         state.BundlePath,
				Created:        state.Created,
				Annotations:    state.Annotations,
			},
			hypervisorDetails: hvDetails,
		})
	}

	return s, nil
}

// getHypervisorDetails returns details of the hypervisor used to host
// the containers.
//
// It ensures all paths are fully expanded.
func getHypervisorDetails(runtimeConfig RuntimeConfig) (hypervisorDetails, error) {
	hypervisorPath, err := filepath.EvalSymlinks(runtimeConfig.HypervisorPath)
	if err != nil {
		return hypervisorDetails{}, err
	}

	kernelPath, err := filepath.EvalSymlinks(runtimeConfig.KernelPath)
	if err != nil {
		return hypervisorDetails{}, err
	}

	imagePath, err := filepath.EvalSymlinks(runtimeConfig.ImagePath)
	if err != nil {
		return hypervisorDetails{}, err
	}

	return hypervisorDetails{
		HypervisorPath: hypervisorPath,
		KernelPath:     kernelPath,
		ImagePath:      imagePath,
	}, nil
}
