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

	"github.com/BurntSushi/toml"
)

// RuntimeConfig holds the resolved configuration used to build each
// container's sandbox.VMConfig.
type RuntimeConfig struct {
	HypervisorPath string
	KernelPath     string
	ImagePath      string
	KernelParams   string
	ShimPath       string
	PauseRootPath  string
	GlobalLogPath  string
}

// The TOML configuration file contains a single [hypervisor], [shim],
// [agent] and [runtime] table:
//
//   [hypervisor]
//   path = "/usr/bin/qemu-system-x86_64"
//   kernel = "/usr/share/novavm/vmlinux.container"
//   image = "/usr/share/novavm/novavm-image.img"
//   kernel_params = "quiet"
//
//   [shim]
//   path = "/usr/libexec/novavm-shim"
//
//   [agent]
//   pause_root_path = "/usr/share/novavm/pause"
//
//   [runtime]
//   global_log_path = "/var/log/novavm/runtime.log"
type tomlConfig struct {
	Hypervisor hypervisor
	Shim       shim
	Agent      agent
	Runtime    runtime
}

type hypervisor struct {
	Path         string `toml:"path"`
	Kernel       string `toml:"kernel"`
	Image        string `toml:"image"`
	KernelParams string `toml:"kernel_params"`
}

type shim struct {
	Path string `toml:"path"`
}

type agent struct {
	PauseRootPath string `toml:"pause_root_path"`
}

type runtime struct {
	GlobalLogPath string `toml:"global_log_path"`
}

func (h hypervisor) path() string {
	if h.Path == "" {
		return defaultHypervisorPath
	}
	return h.Path
}

func (h hypervisor) kernel() string {
	if h.Kernel == "" {
		return defaultKernelPath
	}
	return h.Kernel
}

func (h hypervisor) image() string {
	if h.Image == "" {
		return defaultImagePath
	}
	return h.Image
}

func (s shim) path() string {
	if s.Path == "" {
		return defaultShimPath
	}
	return s.Path
}

func (a agent) pauseRootPath() string {
	if a.PauseRootPath == "" {
		return defaultPauseRootPath
	}
	return a.PauseRootPath
}

func newQemuHypervisorConfig(h hypervisor) (RuntimeConfig, error) {
	hv := h.path()
	kernel := h.kernel()
	image := h.image()

	for _, file := range []string{hv, kernel, image} {
		if !fileExists(file) {
			return RuntimeConfig{}, fmt.Errorf("file does not exist: %v", file)
		}
	}

	return RuntimeConfig{
		HypervisorPath: hv,
		KernelPath:     kernel,
		ImagePath:      image,
		KernelParams:   h.KernelParams,
	}, nil
}

func newShimConfig(s shim) (string, error) {
	path := s.path()
	if !fileExists(path) {
		return "", fmt.Errorf("file does not exist: %v", path)
	}
	return path, nil
}

func newAgentConfig(a agent) (string, error) {
	dir := a.pauseRootPath()
	if !fileExists(dir) {
		return "", fmt.Errorf("directory does not exist: %v", dir)
	}
	return dir, nil
}

// loadConfiguration loads the configuration file and resolves it into a
// RuntimeConfig.
//
// If ignoreLogging is true, the global log will not be initialised nor
// will this function make any log calls.
func loadConfiguration(configPath string, ignoreLogging bool) (resolvedConfigPath, logfilePath string, config RuntimeConfig, err error) {
	if configPath == "" {
		configPath = defaultRuntimeConfiguration
	}

	resolved, err := resolvePath(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", config, fmt.Errorf("config file %v does not exist", configPath)
		}
		return "", "", config, err
	}

	configData, err := os.ReadFile(resolved)
	if err != nil {
		return "", "", config, err
	}

	var tomlConf tomlConfig
	if _, err := toml.Decode(string(configData), &tomlConf); err != nil {
		return "", "", config, err
	}

	logfilePath = tomlConf.Runtime.GlobalLogPath

	if !ignoreLogging {
		if err := handleGlobalLog(logfilePath); err != nil {
			return "", "", config, err
		}
		runtimeLog.Debugf("TOML configuration: %+v", tomlConf)
	}

	hConfig, err := newQemuHypervisorConfig(tomlConf.Hypervisor)
	if err != nil {
		return "", "", config, fmt.Errorf("%v: %v", resolved, err)
	}
	config = hConfig

	shimPath, err := newShimConfig(tomlConf.Shim)
	if err != nil {
		return "", "", config, fmt.Errorf("%v: %v", resolved, err)
	}
	config.ShimPath = shimPath

	pauseRoot, err := newAgentConfig(tomlConf.Agent)
	if err != nil {
		return "", "", config, fmt.Errorf("%v: %v", resolved, err)
	}
	config.PauseRootPath = pauseRoot

	config.GlobalLogPath = logfilePath

	return resolved, logfilePath, config, nil
}
