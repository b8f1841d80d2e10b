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
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/novavm/runtime/internal/sandbox"
)

// Constants related to the cgroups bookkeeping files written alongside
// the VM's runtime directory.
const (
	cgroupsTasksFile = "tasks"
	cgroupsProcsFile = "cgroup.procs"
	cgroupsDirMode   = os.FileMode(0750)
	cgroupsFileMode  = os.FileMode(0640)

	// Filesystem type corresponding to CGROUP_SUPER_MAGIC, as listed here:
	// http://man7.org/linux/man-pages/man2/statfs.2.html
	cgroupFsType = 0x27e0eb

	// sandboxAnnotationKey marks the container that owns a shared pod
	// sandbox, mirroring CRI-O/containerd's "ocid/sandbox" convention.
	sandboxAnnotationKey = "ocid/sandbox"
)

var errPrefixContIDNotUnique = fmt.Errorf("partial container ID not unique")

var cgroupsDirPath = "/sys/fs/cgroup"

// parseConfigJSON reads and decodes the bundle's config.json.
func parseConfigJSON(bundlePath string) (specs.Spec, error) {
	var ociSpec specs.Spec

	configPath := filepath.Join(bundlePath, specConfig)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return specs.Spec{}, err
	}

	if err := json.Unmarshal(data, &ociSpec); err != nil {
		return specs.Spec{}, fmt.Errorf("parsing %v: %v", configPath, err)
	}

	return ociSpec, nil
}

// buildContainerConfig assembles a sandbox.ContainerConfig from the OCI
// spec, the runtime's resolved paths and the CLI-supplied overrides.
func buildContainerConfig(ociSpec specs.Spec, runtimeConfig RuntimeConfig, containerID, bundlePath, console string, useSocketConsole bool, detach bool) (*sandbox.ContainerConfig, error) {
	if ociSpec.Process == nil {
		return nil, &sandbox.ConfigError{Reason: "OCI spec is missing the process field"}
	}

	workloadPath := bundlePath
	if ociSpec.Root != nil {
		root := ociSpec.Root.Path
		if !filepath.IsAbs(root) {
			root = filepath.Join(bundlePath, root)
		}
		workloadPath = root
	}

	cfg := &sandbox.ContainerConfig{
		ID:               containerID,
		BundlePath:       bundlePath,
		RuntimeRoot:      defaultRootDirectory,
		OCIVersion:       ociSpec.Version,
		Console:          console,
		UseSocketConsole: useSocketConsole,
		Detach:           detach,
		Hostname:         ociSpec.Hostname,
		ShimPath:         runtimeConfig.ShimPath,
		VM: sandbox.VMConfig{
			HypervisorPath: runtimeConfig.HypervisorPath,
			ImagePath:      runtimeConfig.ImagePath,
			KernelPath:     runtimeConfig.KernelPath,
			KernelParams:   runtimeConfig.KernelParams,
			WorkloadPath:   workloadPath,
		},
		Process: sandbox.Process{
			Args:     ociSpec.Process.Args,
			Env:      ociSpec.Process.Env,
			Cwd:      ociSpec.Process.Cwd,
			Terminal: ociSpec.Process.Terminal,
		},
		Annotations: ociSpec.Annotations,
		Mounts:      convertMounts(ociSpec.Mounts),
		Hooks:       convertHooks(ociSpec.Hooks),
	}

	if ociSpec.Linux != nil {
		cfg.Namespaces = convertNamespaces(ociSpec.Linux.Namespaces)
	}

	if sandboxName, ok := cfg.Annotations[sandboxAnnotationKey]; ok && sandboxName != "" {
		cfg.Pod = &sandbox.PodConfig{
			SandboxFlag:    true,
			SandboxName:    sandboxName,
			SandboxWorkDir: filepath.Join(defaultRootDirectory, "sandboxes", sandboxName),
			PauseBinPath:   filepath.Join(runtimeConfig.PauseRootPath, pauseBinRelativePath),
		}
	}

	return cfg, nil
}

func convertMounts(mounts []specs.Mount) []sandbox.Mount {
	out := make([]sandbox.Mount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, sandbox.Mount{
			Source:      m.Source,
			Destination: m.Destination,
			Type:        m.Type,
			Options:     m.Options,
		})
	}
	return out
}

func convertNamespaces(namespaces []specs.LinuxNamespace) []sandbox.Namespace {
	out := make([]sandbox.Namespace, 0, len(namespaces))
	for _, ns := range namespaces {
		out = append(out, sandbox.Namespace{
			Type: sandbox.NamespaceType(ns.Type),
			Path: ns.Path,
		})
	}
	return out
}

func convertHooks(hooks *specs.Hooks) sandbox.Hooks {
	if hooks == nil {
		return sandbox.Hooks{}
	}
	return sandbox.Hooks{
		Prestart:  convertHookList(hooks.Prestart),
		Poststart: convertHookList(hooks.Poststart),
		Poststop:  convertHookList(hooks.Poststop),
	}
}

func convertHookList(hooks []specs.Hook) []sandbox.Hook {
	out := make([]sandbox.Hook, 0, len(hooks))
	for _, h := range hooks {
		hook := sandbox.Hook{
			Path: h.Path,
			Args: h.Args,
			Env:  h.Env,
		}
		if h.Timeout != nil {
			hook.Timeout = time.Duration(*h.Timeout) * time.Second
		}
		out = append(out, hook)
	}
	return out
}

// getContainerInfo returns the state of the container whose ID matches
// (or has containerID as a unique prefix of) an existing container. A
// blank returned StateFile means no match was found.
func getContainerInfo(containerID string) (*sandbox.StateFile, error) {
	if containerID == "" {
		return nil, fmt.Errorf("missing container ID")
	}

	states, err := vci.ListContainers(defaultRootDirectory)
	if err != nil {
		return nil, err
	}

	var match *sandbox.StateFile
	for _, state := range states {
		if state.ID == containerID {
			return state, nil
		}
		if strings.HasPrefix(state.ID, containerID) {
			if match != nil {
				return nil, errPrefixContIDNotUnique
			}
			match = state
		}
	}

	return match, nil
}

func getExistingContainerInfo(containerID string) (*sandbox.StateFile, error) {
	state, err := getContainerInfo(containerID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("container ID does not exist")
	}
	return state, nil
}

func validCreateParams(containerID, bundlePath string) (string, error) {
	if containerID == "" {
		return "", fmt.Errorf("missing container ID")
	}

	state, err := getContainerInfo(containerID)
	if err != nil {
		return "", err
	}
	if state != nil {
		return "", fmt.Errorf("ID already in use, unique ID should be provided")
	}

	if bundlePath == "" {
		return "", fmt.Errorf("missing bundle path")
	}

	fileInfo, err := os.Stat(bundlePath)
	if err != nil {
		return "", fmt.Errorf("invalid bundle path %q: %s", bundlePath, err)
	}
	if !fileInfo.IsDir() {
		return "", fmt.Errorf("invalid bundle path %q, it should be a directory", bundlePath)
	}

	return resolvePath(bundlePath)
}

func validContainer(containerID string) error {
	_, err := getExistingContainerInfo(containerID)
	return err
}

// processCgroupsPath processes the cgroups path as expected from the OCI
// runtime specification. It returns the list of complete paths that
// should be created and used for every specified resource.
func processCgroupsPath(ociSpec specs.Spec) ([]string, error) {
	if ociSpec.Linux == nil || ociSpec.Linux.CgroupsPath == "" || ociSpec.Linux.Resources == nil {
		return nil, nil
	}

	var paths []string
	resources := map[string]bool{
		"memory": ociSpec.Linux.Resources.Memory != nil,
		"cpu":    ociSpec.Linux.Resources.CPU != nil,
		"pids":   ociSpec.Linux.Resources.Pids != nil,
		"blkio":  ociSpec.Linux.Resources.BlockIO != nil,
	}

	for _, resource := range []string{"memory", "cpu", "pids", "blkio"} {
		if !resources[resource] {
			continue
		}
		path, err := processCgroupsPathForResource(ociSpec, resource)
		if err != nil {
			return nil, err
		}
		if path != "" {
			paths = append(paths, path)
		}
	}

	return paths, nil
}

func processCgroupsPathForResource(ociSpec specs.Spec, resource string) (string, error) {
	if !filepath.IsAbs(ociSpec.Linux.CgroupsPath) {
		return filepath.Join(cgroupsDirPath, resource, ociSpec.Linux.CgroupsPath), nil
	}

	var cgroupMount *specs.Mount
	for i, mount := range ociSpec.Mounts {
		if mount.Type == "cgroup" {
			cgroupMount = &ociSpec.Mounts[i]
			break
		}
	}

	if cgroupMount == nil {
		// Absolute path but no cgroup mount: assume the caller
		// (e.g. CRI-O) intended a relative lookup.
		return filepath.Join(cgroupsDirPath, resource, ociSpec.Linux.CgroupsPath), nil
	}

	if cgroupMount.Destination == "" {
		return "", fmt.Errorf("cgroupsPath is absolute, cgroup mount destination cannot be empty")
	}

	cgroupPath := filepath.Join(cgroupMount.Destination, resource)
	if !isCgroupMounted(cgroupPath) {
		runtimeLog.Infof("cgroup path %s not mounted", cgroupPath)
		return "", nil
	}

	return filepath.Join(cgroupPath, ociSpec.Linux.CgroupsPath), nil
}

func isCgroupMounted(cgroupPath string) bool {
	var statFs syscall.Statfs_t
	if err := syscall.Statfs(cgroupPath, &statFs); err != nil {
		return false
	}
	return statFs.Type == int64(cgroupFsType)
}
