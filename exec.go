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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	"github.com/novavm/runtime/internal/sandbox"
)

// knownExecShells are the basenames recognized by the exec-shell heuristic.
var knownExecShells = map[string]bool{
	"sh":   true,
	"bash": true,
	"zsh":  true,
	"ksh":  true,
	"csh":  true,
}

// isKnownShell reports whether argv0's basename names a recognized shell.
func isKnownShell(argv0 string) bool {
	if argv0 == "" {
		return false
	}
	return knownExecShells[filepath.Base(argv0)]
}

// applyExecShellHeuristic implements the usability concession described for
// exec: if argv[0] is a known shell and none of the remaining arguments look
// option-like, argv[0] is replaced with the classic login-shell marker
// ("-" + basename) so the guest obtains an interactive shell instead of a
// plain one-off invocation.
func applyExecShellHeuristic(command []string) []string {
	if len(command) == 0 || !isKnownShell(command[0]) {
		return command
	}

	for _, arg := range command[1:] {
		if strings.HasPrefix(arg, "-") {
			return command
		}
	}

	out := make([]string, len(command))
	copy(out, command)
	out[0] = "-" + filepath.Base(command[0])
	return out
}

var execCommand = cli.Command{
	Name:  "exec",
	Usage: "Execute new process inside the container",
	ArgsUsage: `<container-id> <command> [command options]

   <container-id> is the name for the instance of the container and <command>
   is the command to be executed in the container. <command> can't be empty.

EXAMPLE:
   If the container is configured to run the linux ps command the following
   will output a list of processes running in the container:

       # ` + name + ` exec <container-id> ps`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "console",
			Usage: "path to a pseudo terminal",
		},
		cli.StringFlag{
			Name:  "cwd",
			Usage: "current working directory in the container",
		},
		cli.StringSliceFlag{
			Name:  "env, e",
			Usage: "set environment variables",
		},
		cli.BoolFlag{
			Name:  "tty, t",
			Usage: "allocate a pseudo-TTY",
		},
		cli.BoolFlag{
			Name:  "detach,d",
			Usage: "detach from the container's process",
		},
		cli.StringFlag{
			Name:  "pid-file",
			Value: "",
			Usage: "specify the file to write the process id to",
		},
	},
	Action: func(context *cli.Context) error {
		args := context.Args()
		if !args.Present() {
			return fmt.Errorf("missing container ID")
		}

		containerID := args.First()
		command := []string(args.Tail())
		if len(command) == 0 {
			return fmt.Errorf("missing command to execute")
		}

		return execInContainer(containerID, command, context.StringSlice("env"),
			context.String("cwd"), context.Bool("tty"), context.Bool("detach"),
			context.String("pid-file"))
	},
}

// execInContainer opens a secondary I/O stream into an already-running
// pod's proxy connection, per the exec-shell heuristic: asks the guest
// agent to start a new process, then launches a local shim to relay the
// process's stdio over the stream the proxy allocated for it.
func execInContainer(containerID string, command, env []string, cwd string, terminal, detach bool, pidFilePath string) error {
	state, err := getExistingContainerInfo(containerID)
	if err != nil {
		return err
	}

	status := sandbox.EffectiveStatus(state)
	if status != sandbox.StatusRunning {
		return fmt.Errorf("container %s is not running, cannot exec", containerID)
	}

	proxy, err := sandbox.ConnectProxy(state.CommsPath, runtimeLog)
	if err != nil {
		return err
	}
	defer proxy.Close()

	ioBase, err := proxy.AllocateIO()
	if err != nil {
		return err
	}

	command = applyExecShellHeuristic(command)

	if err := proxy.ExecCmd(containerID, command, env, cwd, terminal); err != nil {
		return err
	}

	runtimeRoot := defaultRootDirectory
	ioSocketPath := shimIOSocketPath(runtimeRoot, containerID, ioBase)
	ctlSocketPath := shimCtlSocketPath(runtimeRoot, containerID, ioBase)

	pid, err := startShim(containerID, ioSocketPath, ctlSocketPath, ioBase, ShimConfig{})
	if err != nil {
		return err
	}

	if err := createPIDFile(pidFilePath, pid); err != nil {
		return err
	}

	if detach {
		return nil
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	if _, err := p.Wait(); err != nil {
		return fmt.Errorf("exec process wait: %s", err)
	}

	return nil
}

// shimIOSocketPath and shimCtlSocketPath name the per-stream Unix sockets
// the shim dials to relay a secondary process's stdio, distinguished by
// the ioBase the proxy allocated for this exec session.
func shimIOSocketPath(root, containerID string, ioBase uint64) string {
	return fmt.Sprintf("%s/%s/io-%s.sock", root, containerID, strconv.FormatUint(ioBase, 10))
}

func shimCtlSocketPath(root, containerID string, ioBase uint64) string {
	return fmt.Sprintf("%s/%s/ctl-%s.sock", root, containerID, strconv.FormatUint(ioBase, 10))
}
