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
	"io"
	"os"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/novavm/runtime/pkg/rvc"
)

// vci is the sandbox-engine implementation used by the CLI layer. Tests
// substitute a mock to avoid driving a real hypervisor.
var vci rvc.RVC = &sandboxImpl{}

// name holds the name of this program
const (
	name    = "novavm-runtime"
	project = "novavm"
)

// version is the runtime version. It is specified at compilation time.
var version = ""

// commit is the git commit the runtime is compiled from. It is specified
// at compilation time.
var commit = ""

// specConfig is the name of the file holding the container's configuration.
const specConfig = "config.json"

const usage = project + ` runtime

novavm-runtime is a command line program for running applications packaged
according to the Open Container Initiative (OCI), as lightweight virtual
machines instead of namespaced host processes.`

var defaultRootDirectory = "/run/novavm"

var runtimeLog = logrus.New()

func beforeSubcommands(context *cli.Context) error {
	if userWantsUsage(context) {
		return nil
	}

	if root := context.GlobalString("root"); root != "" {
		defaultRootDirectory = root
	}

	if context.GlobalBool("debug") {
		runtimeLog.Level = logrus.DebugLevel
	}
	if path := context.GlobalString("log"); path != "" && path != "/dev/null" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0640)
		if err != nil {
			return err
		}
		runtimeLog.Out = f
	}

	switch context.GlobalString("log-format") {
	case "text":
		// retain logrus's default.
	case "json":
		runtimeLog.Formatter = new(logrus.JSONFormatter)
	default:
		return fmt.Errorf("unknown log-format %q", context.GlobalString("log-format"))
	}

	vci.SetLogger(runtimeLog)

	configFile, logfilePath, runtimeConfig, err := loadConfiguration(context.GlobalString("config"), false)
	if err != nil {
		fatal(err)
	}

	if err := handleGlobalLog(logfilePath); err != nil {
		fatal(err)
	}

	runtimeLog.Infof("%v (version %v, commit %v) called as: %v", name, version, commit, context.Args())

	context.App.Metadata = map[string]interface{}{
		"runtimeConfig": runtimeConfig,
		"configFile":    configFile,
		"logfilePath":   logfilePath,
	}

	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = name
	app.Usage = usage

	v := make([]string, 0, 3)
	if version != "" {
		v = append(v, name+"  : "+version)
	}
	if commit != "" {
		v = append(v, "   commit   : "+commit)
	}
	v = append(v, "   OCI specs: "+specs.Version)
	app.Version = strings.Join(v, "\n")

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Println(c.App.Version)
	}

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: project + " config file path",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug output for logging",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "/dev/null",
			Usage: "set the log file path where internal debug information is written",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "set the format used by logs ('text' (default), or 'json')",
		},
		cli.StringFlag{
			Name:  "root",
			Value: defaultRootDirectory,
			Usage: "root directory for storage of container state (this should be located in tmpfs)",
		},
	}

	app.Commands = []cli.Command{
		attachCommand,
		createCommand,
		deleteCommand,
		execCommand,
		killCommand,
		listCommand,
		pauseCommand,
		psCommand,
		resumeCommand,
		runCommand,
		startCommand,
		stateCommand,
		stopCommand,
	}

	app.Before = beforeSubcommands
	cli.ErrWriter = &fatalWriter{cli.ErrWriter}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// userWantsUsage determines if the user only wishes to see the usage
// statement.
func userWantsUsage(context *cli.Context) bool {
	if context.NArg() == 0 {
		return true
	}

	if context.NArg() == 1 && (context.Args()[0] == "help" || context.Args()[0] == "version") {
		return true
	}

	if context.NArg() >= 2 && (context.Args()[1] == "-h" || context.Args()[1] == "--help") {
		return true
	}

	return false
}

// fatal logs the error's details, prints a one-line message to stderr
// (never a stack trace) and exits nonzero.
func fatal(err error) {
	runtimeLog.Error(err)
	fmt.Fprintln(os.Stderr, err)
	exit(1)
}

type fatalWriter struct {
	cliErrWriter io.Writer
}

func (f *fatalWriter) Write(p []byte) (n int, err error) {
	runtimeLog.Error(string(p))
	return f.cliErrWriter.Write(p)
}
