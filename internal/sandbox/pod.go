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

// Description: the Lifecycle Orchestrator: the top-level controller that
// composes the VM launch pipeline, the proxy client, the hook runner and
// the state store per subcommand. This is the library surface the CLI
// layer in cmd/ calls into.

package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

var pkgLog logrus.FieldLogger = logrus.StandardLogger()

// SetLogger installs the logger every orchestrator operation reports
// through.
func SetLogger(logger logrus.FieldLogger) {
	pkgLog = logger
}

// CreateContainer runs the create control flow from cfg-parse through
// hypervisor-exec(paused) and the state-file write. It does not start the
// guest; that is Start's job.
func CreateContainer(cfg *ContainerConfig) (*ContainerState, error) {
	if cfg.OCIVersion != "" {
		if err := CheckSpecVersion(cfg.OCIVersion); err != nil {
			return nil, err
		}
	}

	if err := validateVMPaths(&cfg.VM); err != nil {
		return nil, err
	}

	runtimeDir := RuntimeDir(cfg.RuntimeRoot, cfg.ID)
	if _, err := os.Stat(runtimeDir); err == nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("container %q already exists", cfg.ID)}
	}
	if err := os.MkdirAll(runtimeDir, 0750); err != nil {
		return nil, &IOError{Op: "create runtime dir", Err: err}
	}

	if err := applyMounts(cfg.Mounts, pkgLog); err != nil {
		cleanupFailedCreate(cfg)
		return nil, err
	}

	if err := emitWorkloadScript(cfg); err != nil {
		cleanupFailedCreate(cfg)
		return nil, err
	}

	commsSocket := filepath.Join(runtimeDir, "hypervisor.sock")
	processSocket := filepath.Join(runtimeDir, "process.sock")

	argsPath, err := resolveArgsTemplate(cfg)
	if err != nil {
		cleanupFailedCreate(cfg)
		return nil, err
	}

	imageInfo, err := os.Stat(cfg.VM.ImagePath)
	if err != nil {
		cleanupFailedCreate(cfg)
		return nil, &ConfigError{Reason: fmt.Sprintf("cannot stat image: %v", err)}
	}

	expCtx := &ExpansionContext{
		WorkloadDir:     cfg.VM.WorkloadPath,
		Kernel:          cfg.VM.KernelPath,
		KernelParams:    cfg.VM.KernelParams,
		KernelNetParams: SerializeNetworkParams(&cfg.Network),
		Image:           cfg.VM.ImagePath,
		ImageSizeBytes:  imageInfo.Size(),
		CommsSocket:     commsSocket,
		ProcessSocket:   processSocket,
		ConsoleDevice:   consoleDeviceArg(cfg),
		AgentCtlSocket:  filepath.Join(runtimeDir, "agent-ctl.sock"),
		AgentTTYSocket:  filepath.Join(runtimeDir, "agent-tty.sock"),
	}

	args, err := ExpandArgs(argsPath, expCtx)
	if err != nil {
		cleanupFailedCreate(cfg)
		return nil, err
	}
	if len(cfg.Network.Interfaces) == 0 {
		args = append(args, "-net", "none")
	}

	hv, err := LaunchPaused(args, pkgLog)
	if err != nil {
		cleanupFailedCreate(cfg)
		return nil, err
	}
	cfg.VM.Pid = hv.Pid

	state := &StateFile{
		OCIVersion:    cfg.OCIVersion,
		ID:            cfg.ID,
		// Pid is provisionally the hypervisor's until start forks the
		// shim and records its pid in its place: no container process
		// exists yet while the VM sits paused at early boot.
		Pid:               cfg.VM.Pid,
		HypervisorPid:     cfg.VM.Pid,
		BundlePath:        cfg.BundlePath,
		CommsPath:         commsSocket,
		ProcessSocketPath: processSocket,
		Status:            StatusCreated,
		Created:           now(),
		Console:           cfg.Console,
		UseSocketConsole:  cfg.UseSocketConsole,
		Hostname:          cfg.Hostname,
		ShimPath:          cfg.ShimPath,
		Process:           cfg.Process,
		Mounts:            cfg.Mounts,
		Annotations:       cfg.Annotations,
		Pod:               cfg.Pod,
		VM: StateFileVM{
			HypervisorPath: cfg.VM.HypervisorPath,
			ImagePath:      cfg.VM.ImagePath,
			KernelPath:     cfg.VM.KernelPath,
			WorkloadPath:   cfg.VM.WorkloadPath,
			KernelParams:   cfg.VM.KernelParams,
		},
	}

	if err := WriteState(cfg.RuntimeRoot, cfg.ID, state); err != nil {
		hv.Kill(syscall.SIGKILL)
		cleanupFailedCreate(cfg)
		return nil, err
	}

	hookState := BuildHookState(cfg.ID, cfg.VM.Pid, cfg.BundlePath)
	if err := RunHooks(context.Background(), cfg.Hooks.Prestart, hookState, true, pkgLog); err != nil {
		hv.Kill(syscall.SIGKILL)
		state.Status = StatusStopped
		WriteState(cfg.RuntimeRoot, cfg.ID, state)
		cleanupFailedCreate(cfg)
		return nil, err
	}

	return &ContainerState{
		Status:            StatusCreated,
		WorkloadPid:       cfg.VM.Pid,
		RuntimePath:       runtimeDir,
		StateFilePath:     StatePath(cfg.RuntimeRoot, cfg.ID),
		CommsSocketPath:   commsSocket,
		ProcessSocketPath: processSocket,
	}, nil
}

// StartContainer validates the Created precondition, resumes the paused
// hypervisor, completes the proxy handshake (hello, allocateIO, startpod,
// newcontainer) now that the guest agent has had a chance to boot, forks
// the shim to relay the container's stdio, records its pid as the
// container's OCI process, updates state to Running and runs poststart
// hooks.
func StartContainer(root, containerID string, hooks []Hook) error {
	state, err := ReadState(root, containerID)
	if err != nil {
		return err
	}

	if !ProcessAlive(state.HypervisorPid) {
		return &LifecycleError{ContainerID: containerID, Op: "start", State: StatusStopped}
	}
	if state.Status != StatusCreated {
		return &LifecycleError{ContainerID: containerID, Op: "start", State: state.Status}
	}

	hv := &PausedHypervisor{Pid: state.HypervisorPid}
	if err := hv.Resume(); err != nil {
		return err
	}

	runtimeDir := RuntimeDir(root, containerID)
	ctlSerial := filepath.Join(runtimeDir, "agent-ctl.sock")
	ioSerial := filepath.Join(runtimeDir, "agent-tty.sock")

	if err := WaitForAgentSocket(state.CommsPath, waitForProxyTimeout); err != nil {
		hv.Kill(syscall.SIGKILL)
		return err
	}

	proxy, err := ConnectProxy(state.CommsPath, pkgLog)
	if err != nil {
		hv.Kill(syscall.SIGKILL)
		return err
	}

	if err := proxy.Hello(containerID, ctlSerial, ioSerial); err != nil {
		proxy.Close()
		hv.Kill(syscall.SIGKILL)
		return err
	}

	ioBase, err := proxy.AllocateIO()
	if err != nil {
		proxy.Close()
		hv.Kill(syscall.SIGKILL)
		return err
	}

	if err := proxy.StartPod(state.Hostname, state.VM.WorkloadPath); err != nil {
		proxy.Close()
		hv.Kill(syscall.SIGKILL)
		return err
	}

	args, cwd := workloadCommand(state.Pod, state.Process)
	if err := proxy.NewContainer(containerID, args, state.Process.Env, cwd, state.Process.Terminal); err != nil {
		proxy.Close()
		hv.Kill(syscall.SIGKILL)
		return err
	}

	// The handshake connection's job is done; the shim opens its own
	// connections to the streams the proxy just allocated.
	proxy.Close()

	shimPid, err := LaunchShim(state.ShimPath, containerID, state.ProcessSocketPath, state.CommsPath, ioBase)
	if err != nil {
		hv.Kill(syscall.SIGKILL)
		return err
	}

	state.Pid = shimPid
	state.Status = StatusRunning
	if err := WriteState(root, containerID, state); err != nil {
		return err
	}

	hookState := BuildHookState(containerID, state.Pid, state.BundlePath)
	RunHooks(context.Background(), hooks, hookState, false, pkgLog)

	return nil
}

// StopContainer sends the configured shutdown request (destroypod) to the
// hypervisor control socket if the VM is still reachable, then sends
// SIGTERM to the hypervisor whenever its process is still alive (whether or
// not destroypod was delivered), then always runs cleanup
// (unmount, delete state, delete runtime dir) and the unconditional
// poststop hooks. It is idempotent: calling it on an already-stopped
// container still succeeds.
func StopContainer(root, containerID string, mounts []Mount, poststop []Hook) error {
	state, err := ReadState(root, containerID)
	bundlePath := ""
	pid := 0
	if err == nil {
		bundlePath = state.BundlePath
		pid = state.Pid

		if proxy, dialErr := connectProxyOnce(state.CommsPath, pkgLog); dialErr == nil {
			if destroyErr := proxy.DestroyPod(); destroyErr != nil {
				pkgLog.WithError(destroyErr).Warn("destroypod request failed")
			}
			proxy.Close()
		}

		if ProcessAlive(state.HypervisorPid) {
			hv := &PausedHypervisor{Pid: state.HypervisorPid}
			hv.Kill(syscall.SIGTERM)
		}
	}

	unmountAll(mounts, pkgLog)

	hookState := BuildHookState(containerID, pid, bundlePath)
	RunHooks(context.Background(), poststop, hookState, false, pkgLog)

	if delErr := DeleteState(root, containerID); delErr != nil {
		return delErr
	}

	return nil
}

// KillContainer records Stopping, asks the guest agent to deliver signum to
// the container's process via the proxy's killcontainer command, and
// records Stopped on success or restores the previous status on failure.
// If the proxy can't be reached (the VM is already gone, or never came up)
// it falls back to signaling the hypervisor process directly. An absent
// pid/state is a non-fatal no-op, making kill repeatable.
func KillContainer(root, containerID string, signum int) error {
	state, err := ReadState(root, containerID)
	if err != nil {
		return nil
	}

	previous := state.Status
	state.Status = StatusStopping
	if err := WriteState(root, containerID, state); err != nil {
		return err
	}

	if proxy, dialErr := connectProxyOnce(state.CommsPath, pkgLog); dialErr == nil {
		killErr := proxy.KillContainer(containerID, signum)
		proxy.Close()
		if killErr == nil {
			state.Status = StatusStopped
			return WriteState(root, containerID, state)
		}
		pkgLog.WithError(killErr).Warn("killcontainer request failed, falling back to signaling hypervisor")
	}

	if state.HypervisorPid <= 0 {
		return nil
	}

	hv := &PausedHypervisor{Pid: state.HypervisorPid}
	if err := hv.Kill(signalFromInt(signum)); err != nil {
		state.Status = previous
		WriteState(root, containerID, state)
		return err
	}

	state.Status = StatusStopped
	return WriteState(root, containerID, state)
}

// DeleteContainer removes a container's runtime directory. Deleting an
// already-deleted container is a no-op success.
func DeleteContainer(root, containerID string) error {
	return DeleteState(root, containerID)
}

// PauseContainer and ResumeContainer deliver SIGSTOP/SIGCONT to the
// hypervisor process and update the recorded status accordingly.
func PauseContainer(root, containerID string) error {
	state, err := ReadState(root, containerID)
	if err != nil {
		return err
	}
	hv := &PausedHypervisor{Pid: state.HypervisorPid}
	if err := hv.Kill(syscall.SIGSTOP); err != nil {
		return err
	}
	state.Status = StatusPaused
	return WriteState(root, containerID, state)
}

func ResumeContainer(root, containerID string) error {
	state, err := ReadState(root, containerID)
	if err != nil {
		return err
	}
	hv := &PausedHypervisor{Pid: state.HypervisorPid}
	if err := hv.Resume(); err != nil {
		return err
	}
	state.Status = StatusRunning
	return WriteState(root, containerID, state)
}

// ListContainers enumerates root's subdirectories, reads each state file
// and reconciles status against kernel-reported pid liveness.
func ListContainers(root string) ([]*StateFile, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &IOError{Op: "read runtime root", Err: err}
	}

	var out []*StateFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		state, err := ReadState(root, entry.Name())
		if err != nil {
			continue
		}
		state.Status = EffectiveStatus(state)
		out = append(out, state)
	}

	return out, nil
}

func cleanupFailedCreate(cfg *ContainerConfig) {
	unmountAll(cfg.Mounts, pkgLog)
	DeleteState(cfg.RuntimeRoot, cfg.ID)
}

func validateVMPaths(vm *VMConfig) error {
	for name, path := range map[string]string{
		"hypervisor": vm.HypervisorPath,
		"kernel":     vm.KernelPath,
		"image":      vm.ImagePath,
	} {
		if path == "" {
			return &ConfigError{Reason: fmt.Sprintf("missing %s path", name)}
		}
		if _, err := os.Stat(path); err != nil {
			return &ConfigError{Reason: fmt.Sprintf("%s path %q: %v", name, path, err)}
		}
	}
	if _, err := os.Stat(vm.WorkloadPath); err != nil {
		return &ConfigError{Reason: fmt.Sprintf("workload dir %q: %v", vm.WorkloadPath, err)}
	}
	return nil
}

func resolveArgsTemplate(cfg *ContainerConfig) (string, error) {
	return ArgsFilePath(cfg.BundlePath, "/etc/novavm", "/usr/share/defaults/novavm")
}

// workloadCommand resolves the argv and working directory that should
// actually run as the container's PID 1: the pod's infra container runs
// novavm-pause to hold the shared namespaces open instead of its own OCI
// process. Shared by the script emitted at create time and the
// newcontainer request sent to the guest agent at start time.
func workloadCommand(pod *PodConfig, proc Process) ([]string, string) {
	if pod != nil && pod.SandboxFlag {
		return []string{pod.PauseBinPath}, "/"
	}
	return proc.Args, proc.Cwd
}

// emitWorkloadScript writes the in-guest workload script: a minimal shell
// file whose body is `cd <cwd>; <argv>`, with an adjacent env file.
func emitWorkloadScript(cfg *ContainerConfig) error {
	scriptPath := filepath.Join(cfg.VM.WorkloadPath, ".novavm-workload.sh")
	envPath := filepath.Join(cfg.VM.WorkloadPath, ".novavm-workload.env")

	args, cwd := workloadCommand(cfg.Pod, cfg.Process)

	cmdline := fmt.Sprintf("cd %s; %s\n", cwd, joinArgs(args))
	if err := os.WriteFile(scriptPath, []byte("#!/bin/sh\n"+cmdline), 0750); err != nil {
		return &IOError{Op: "write workload script", Err: err}
	}

	envContents := ""
	for _, kv := range cfg.Process.Env {
		envContents += kv + "\n"
	}
	if err := os.WriteFile(envPath, []byte(envContents), 0640); err != nil {
		return &IOError{Op: "write workload env file", Err: err}
	}

	return nil
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func consoleDeviceArg(cfg *ContainerConfig) string {
	if cfg.UseSocketConsole {
		return fmt.Sprintf("socket,path=%s,server,nowait,id=charconsole0,signal=off", cfg.Console)
	}
	if cfg.Console != "" {
		return fmt.Sprintf("pty,id=charconsole0,path=%s", cfg.Console)
	}
	return "stdio,id=charconsole0,signal=off"
}

// now is a seam so tests can't accidentally depend on wall-clock time
// drifting between write and read in the same assertion.
var now = func() time.Time { return time.Now().UTC() }
