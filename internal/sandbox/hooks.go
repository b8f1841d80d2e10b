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

// Description: Hook Runner executes user-supplied external programs at
// lifecycle transitions, piping the current state document to each hook's
// standard input and collecting its output.

package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/opencontainers/runc/libcontainer/configs"
	"github.com/sirupsen/logrus"
)

// RunHooks executes hooks sequentially, piping a configs.HookState document
// to each one's stdin. stopOnFailure controls whether a nonzero exit
// aborts the remaining hooks in this group or is merely logged.
func RunHooks(ctx context.Context, hooks []Hook, state *configs.HookState, stopOnFailure bool, log logrus.FieldLogger) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return &IOError{Op: "marshal hook state", Err: err}
	}
	// Embedded newlines flattened to spaces: hooks read their state as a
	// single line on stdin.
	flattened := strings.ReplaceAll(string(stateJSON), "\n", " ")

	var firstErr error
	for _, hook := range hooks {
		if err := runHook(ctx, hook, flattened, log); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if stopOnFailure {
				return firstErr
			}
			log.WithError(err).WithField("hook", hook.Path).Warn("hook failed, continuing")
		}
	}

	return firstErr
}

func runHook(ctx context.Context, hook Hook, stateJSON string, log logrus.FieldLogger) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if hook.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, hook.Timeout)
		defer cancel()
	}

	args := hook.Args
	if len(args) == 0 {
		args = []string{hook.Path}
	}

	cmd := exec.CommandContext(runCtx, hook.Path)
	cmd.Args = args
	cmd.Env = hook.Env

	cmd.Stdin = strings.NewReader(stateJSON + "\n")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	logHookOutput(log, hook.Path, "stdout", &stdout, logrus.InfoLevel)
	logHookOutput(log, hook.Path, "stderr", &stderr, logrus.WarnLevel)

	if err != nil {
		return &ExecError{Program: hook.Path, Err: err}
	}

	return nil
}

// logHookOutput logs a hook's captured stream line by line at the given
// level.
func logHookOutput(log logrus.FieldLogger, path, stream string, buf *bytes.Buffer, level logrus.Level) {
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		entry := log.WithField("hook", path).WithField("stream", stream)
		line := scanner.Text()
		switch level {
		case logrus.InfoLevel:
			entry.Info(line)
		case logrus.WarnLevel:
			entry.Warn(line)
		default:
			entry.Debug(line)
		}
	}
}

// BuildHookState constructs the configs.HookState JSON document sent to
// each hook's stdin.
func BuildHookState(containerID string, pid int, bundle string) *configs.HookState {
	return &configs.HookState{
		Version: SupportedSpecVersion,
		ID:      containerID,
		Pid:     pid,
		Bundle:  bundle,
	}
}
