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

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func writeEchoHook(t *testing.T, dir string, exitCode int) string {
	t.Helper()
	path := filepath.Join(dir, "hook-"+itoa(exitCode)+".sh")
	script := "#!/bin/sh\ncat >/dev/null\ntouch \"$0.ran\"\nexit " + itoa(exitCode) + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write hook script: %v", err)
	}
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestRunHooksStopOnFailureAbortsRemaining(t *testing.T) {
	dir := t.TempDir()
	failing := writeEchoHook(t, dir, 1)
	never := writeEchoHook(t, dir, 0)

	hooks := []Hook{
		{Path: failing, Args: []string{failing}},
		{Path: never, Args: []string{never}},
	}

	state := BuildHookState("c1", os.Getpid(), "/bundle")
	err := RunHooks(context.Background(), hooks, state, true, logrus.StandardLogger())
	if err == nil {
		t.Fatalf("expected error from failing hook")
	}
	if _, err := os.Stat(never + ".ran"); err == nil {
		t.Fatalf("hook after the failing one ran despite stopOnFailure")
	}
}

func TestRunHooksContinuesWithoutStopOnFailure(t *testing.T) {
	dir := t.TempDir()
	failing := writeEchoHook(t, dir, 1)
	succeeding := writeEchoHook(t, dir, 0)

	hooks := []Hook{
		{Path: failing, Args: []string{failing}},
		{Path: succeeding, Args: []string{succeeding}},
	}

	state := BuildHookState("c1", os.Getpid(), "/bundle")
	err := RunHooks(context.Background(), hooks, state, false, logrus.StandardLogger())
	if err == nil {
		t.Fatalf("expected first failing hook's error to be returned even though execution continued")
	}
	if _, err := os.Stat(succeeding + ".ran"); err != nil {
		t.Fatalf("hook after the failing one did not run: %v", err)
	}
}
