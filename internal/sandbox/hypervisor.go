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

// Description: the VM Launch Pipeline. The parent starts the hypervisor
// child with its argument list passed directly to exec, and keeps the VM paused
// (via ptrace's stop-on-exec) until an explicit start resumes it.

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
)

// PausedHypervisor is a hypervisor process launched in the paused state;
// its guest does not advance past early boot until Resume is called.
type PausedHypervisor struct {
	cmd *exec.Cmd
	Pid int
}

// LaunchPaused forks the hypervisor named by args[0] with the remaining
// elements as its argument vector, leaving it stopped immediately after
// its own exec so that the guest never begins executing before Resume is
// called. The child's setup failures reach the parent through cmd.Start()'s
// own error return plus the ptrace stop-on-exec wait; there is no separate
// failure pipe.
func LaunchPaused(args []string, log logrus.FieldLogger) (*PausedHypervisor, error) {
	if len(args) == 0 {
		return nil, &ConfigError{Reason: "empty hypervisor argument list"}
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:  true,
		Setpgid: true,
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, &ExecError{Program: args[0], Err: err}
	}

	pid := cmd.Process.Pid

	// cmd.Start() with Ptrace:true leaves the child stopped at its own
	// execve trap; waiting for that stop is what "the parent then, after
	// waiting for the expected stop-on-exec, detaches with a pending STOP"
	// (spec 4.2) describes.
	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &ws, 0, nil); err != nil {
		cmd.Process.Kill()
		return nil, &ExecError{Program: args[0], Err: fmt.Errorf("wait for exec-stop: %w", err)}
	}
	if !ws.Stopped() {
		return nil, &ExecError{Program: args[0], Err: fmt.Errorf("hypervisor did not stop on exec, status=%v", ws)}
	}

	// Detach, leaving a SIGSTOP pending so the tracee stays paused even
	// once ptrace control is released. A subsequent SIGCONT resumes it.
	if err := syscall.PtraceDetach(pid); err != nil {
		cmd.Process.Kill()
		return nil, &ExecError{Program: args[0], Err: fmt.Errorf("ptrace detach: %w", err)}
	}
	if err := syscall.Kill(pid, syscall.SIGSTOP); err != nil {
		log.WithError(err).Warn("could not re-stop hypervisor after ptrace detach")
	}

	log.WithField("pid", pid).Debug("hypervisor launched paused")

	return &PausedHypervisor{cmd: cmd, Pid: pid}, nil
}

// Resume sends SIGCONT, allowing the guest to proceed past its paused
// early-boot state. This is the `start` subcommand's core action.
func (h *PausedHypervisor) Resume() error {
	if err := syscall.Kill(h.Pid, syscall.SIGCONT); err != nil {
		return &ExecError{Program: "hypervisor", Err: fmt.Errorf("SIGCONT pid %d: %w", h.Pid, err)}
	}
	return nil
}

// Kill delivers signum to the hypervisor process.
func (h *PausedHypervisor) Kill(signum syscall.Signal) error {
	if err := syscall.Kill(h.Pid, signum); err != nil {
		return &ExecError{Program: "hypervisor", Err: fmt.Errorf("signal %d pid %d: %w", signum, h.Pid, err)}
	}
	return nil
}

// Release detaches the Cmd bookkeeping without killing the process, used
// once a subcommand invocation is done observing it but the VM should keep
// running for subsequent invocations.
func (h *PausedHypervisor) Release() error {
	return h.cmd.Process.Release()
}
