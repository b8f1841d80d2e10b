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
	"path/filepath"

	"github.com/urfave/cli"
)

var createCommand = cli.Command{
	Name:  "create",
	Usage: "Create a container",
	ArgsUsage: `<container-id>

   <container-id> is your name for the instance of the container that you
   are starting. The name you provide for the container instance must be unique
   on your host.`,
	Description: `The create command creates an instance of a container for a bundle. The
   bundle is a directory with a specification file named "` + specConfig + `" and a
   root filesystem.
   The specification file includes an args parameter. The args parameter is
   used to specify command(s) that get run when the container is started.
   To change the command(s) that get executed on start, edit the args
   parameter of the spec.`,
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
	},
	Action: func(context *cli.Context) error {
		runtimeConfig, ok := context.App.Metadata["runtimeConfig"].(RuntimeConfig)
		if !ok {
			return errors.New("invalid runtime config")
		}

		console, useSocketConsole, err := setupConsole(context.String("console"), context.String("console-socket"))
		if err != nil {
			return err
		}

		return create(context.Args().First(),
			context.String("bundle"),
			console,
			useSocketConsole,
			context.String("pid-file"),
			true,
			runtimeConfig,
		)
	},
}

func create(containerID, bundlePath, console string, useSocketConsole bool, pidFilePath string, detach bool,
	runtimeConfig RuntimeConfig) error {
	var err error

	// Checks the MUST and MUST NOT from OCI runtime specification
	if bundlePath, err = validCreateParams(containerID, bundlePath); err != nil {
		return err
	}

	ociSpec, err := parseConfigJSON(bundlePath)
	if err != nil {
		return err
	}

	cfg, err := buildContainerConfig(ociSpec, runtimeConfig, containerID, bundlePath, console, useSocketConsole, detach)
	if err != nil {
		return err
	}

	state, err := vci.CreateContainer(cfg)
	if err != nil {
		return err
	}

	// config.json provides a cgroups path that has to be used to create "tasks"
	// and "cgroup.procs" files. Those files have to be filled with a PID, which
	// at this point is the paused hypervisor's: the shim is only forked by
	// start, and neither these files nor the PID file are rewritten with the
	// shim's PID afterwards. This is mandatory to make sure there is no one
	// else (like Docker) trying to create those files on our behalf. We want to
	// know those files' location so that we can remove them when delete is called.
	cgroupsPathList, err := processCgroupsPath(ociSpec)
	if err != nil {
		return err
	}

	if err := createCgroupsFiles(cgroupsPathList, state.WorkloadPid); err != nil {
		return err
	}

	// Creation of the PID file has to be the last thing done in create
	// because containerd considers the create complete after this file
	// is created.
	if err := createPIDFile(pidFilePath, state.WorkloadPid); err != nil {
		return err
	}

	return nil
}

func createCgroupsFiles(cgroupsPathList []string, pid int) error {
	if len(cgroupsPathList) == 0 {
		runtimeLog.Info("cgroups files not created because cgroupsPath was empty")
		return nil
	}

	for _, cgroupsPath := range cgroupsPathList {
		if err := os.MkdirAll(cgroupsPath, cgroupsDirMode); err != nil {
			return err
		}

		tasksFilePath := filepath.Join(cgroupsPath, cgroupsTasksFile)
		procsFilePath := filepath.Join(cgroupsPath, cgroupsProcsFile)

		pidStr := fmt.Sprintf("%d", pid)

		for _, path := range []string{tasksFilePath, procsFilePath} {
			f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, cgroupsFileMode)
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := f.WriteString(pidStr)
			if err != nil {
				return err
			}

			if n < len(pidStr) {
				return fmt.Errorf("could not write pid to %q: only %d bytes written out of %d",
					path, n, len(pidStr))
			}
		}
	}

	return nil
}

func createPIDFile(pidFilePath string, pid int) error {
	if pidFilePath == "" {
		// runtime should not fail since pid file is optional
		return nil
	}

	if err := os.RemoveAll(pidFilePath); err != nil {
		return err
	}

	f, err := os.Create(pidFilePath)
	if err != nil {
		return err
	}
	defer f.Close()

	pidStr := fmt.Sprintf("%d", pid)

	n, err := f.WriteString(pidStr)
	if err != nil {
		return err
	}

	if n < len(pidStr) {
		return fmt.Errorf("could not write pid to %q: only %d bytes written out of %d", pidFilePath, n, len(pidStr))
	}

	return nil
}
