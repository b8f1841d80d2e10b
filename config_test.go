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
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeRuntimeConfigFileData(hypervisorPath, kernelPath, imagePath, shimPath, agentPauseRootPath, logPath string) string {
	return `
	# novavm runtime configuration file

	[hypervisor]
	path = "` + hypervisorPath + `"
	kernel = "` + kernelPath + `"
	image = "` + imagePath + `"

	[shim]
	path = "` + shimPath + `"

	[agent]
	pause_root_path = "` + agentPauseRootPath + `"

	[runtime]
	global_log_path = "` + logPath + `"
	`
}

func createConfig(fileName string, fileData string) (string, error) {
	configPath := path.Join(testDir, fileName)

	err := ioutil.WriteFile(configPath, []byte(fileData), testFileMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to create config file %s %v\n", configPath, err)
		return "", err
	}

	return configPath, nil
}

func TestRuntimeConfig(t *testing.T) {
	dir, err := ioutil.TempDir(testDir, "runtime-config-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	hypervisorPath := path.Join(dir, "hypervisor")
	kernelPath := path.Join(dir, "kernel")
	imagePath := path.Join(dir, "image")
	shimPath := path.Join(dir, "shim")
	agentPauseRootPath := path.Join(dir, "agentPauseRoot")
	logPath := path.Join(dir, "logs/runtime.log")

	runtimeConfigData := makeRuntimeConfigFileData(hypervisorPath, kernelPath, imagePath, shimPath, agentPauseRootPath, logPath)

	configPath, err := createConfig("runtime.toml", runtimeConfigData)
	if err != nil {
		t.Fatal(err)
	}

	configPathLink := path.Join(filepath.Dir(configPath), "link-to-configuration.toml")

	// create a link to the config file
	err = syscall.Symlink(configPath, configPathLink)
	assert.NoError(t, err)

	_, _, config, err := loadConfiguration(configPathLink, true)
	if err == nil {
		t.Fatalf("Expected loadConfiguration to fail as no paths exist: %+v", config)
	}

	assert.False(t, fileExists(filepath.Dir(logPath)))
	assert.False(t, fileExists(logPath))

	files := []string{hypervisorPath, kernelPath, imagePath, shimPath}
	filesLen := len(files)

	for i, file := range files {
		_, _, _, err = loadConfiguration(configPathLink, true)
		if err == nil {
			t.Fatalf("Expected loadConfiguration to fail as not all paths exist (not created %v)",
				strings.Join(files[i:filesLen], ","))
		}

		assert.False(t, fileExists(filepath.Dir(logPath)))
		assert.False(t, fileExists(logPath))

		// create the resource
		err = createEmptyFile(file)
		if err != nil {
			t.Error(err)
		}
	}

	if err := os.MkdirAll(agentPauseRootPath, testDirMode); err != nil {
		t.Fatal(err)
	}

	// all paths exist now
	resolvedConfigPath, logfilePath, config, err := loadConfiguration(configPathLink, true)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, configPath, resolvedConfigPath)
	assert.Equal(t, logfilePath, logPath)
	assert.False(t, fileExists(filepath.Dir(logPath)))
	assert.False(t, fileExists(logPath))

	assert.Equal(t, hypervisorPath, config.HypervisorPath)
	assert.Equal(t, kernelPath, config.KernelPath)
	assert.Equal(t, imagePath, config.ImagePath)
	assert.Equal(t, shimPath, config.ShimPath)
	assert.Equal(t, agentPauseRootPath, config.PauseRootPath)
	assert.Equal(t, logPath, config.GlobalLogPath)

	resolvedConfigPath, logfilePath, _, err = loadConfiguration(configPathLink, false)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, configPath, resolvedConfigPath)
	assert.Equal(t, logfilePath, logPath)
	assert.True(t, fileExists(filepath.Dir(logPath)))
	assert.True(t, fileExists(logPath))

	if err := os.Remove(configPathLink); err != nil {
		t.Fatal(err)
	}
}

func TestMinimalRuntimeConfig(t *testing.T) {
	dir, err := ioutil.TempDir(testDir, "minimal-runtime-config-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	shimPath := path.Join(dir, "shim")

	runtimeMinimalConfig := `
	# novavm runtime configuration file

	[shim]
	path = "` + shimPath + `"
`

	configPath, err := createConfig("runtime.toml", runtimeMinimalConfig)
	if err != nil {
		t.Fatal(err)
	}

	_, _, config, err := loadConfiguration(configPath, false)
	if err == nil {
		t.Fatalf("Expected loadConfiguration to fail as hypervisor/kernel/image/pause paths do not exist: %+v", config)
	}

	err = createEmptyFile(shimPath)
	if err != nil {
		t.Error(err)
	}

	// shim path exists now, but hypervisor/kernel/image/pause still use
	// their defaults, which won't exist on the test host either.
	_, _, config, err = loadConfiguration(configPath, false)
	if err == nil {
		t.Fatalf("Expected loadConfiguration to still fail as default paths do not exist: %+v", config)
	}

	if err := os.Remove(configPath); err != nil {
		t.Fatal(err)
	}
}

func TestNewQemuHypervisorConfig(t *testing.T) {
	dir, err := ioutil.TempDir(testDir, "hypervisor-config-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	hypervisorPath := path.Join(dir, "hypervisor")
	kernelPath := path.Join(dir, "kernel")
	imagePath := path.Join(dir, "image")

	h := hypervisor{
		Path:   hypervisorPath,
		Kernel: kernelPath,
		Image:  imagePath,
	}

	files := []string{hypervisorPath, kernelPath, imagePath}
	filesLen := len(files)

	for i, file := range files {
		_, err := newQemuHypervisorConfig(h)
		if err == nil {
			t.Fatalf("Expected newQemuHypervisorConfig to fail as not all paths exist (not created %v)",
				strings.Join(files[i:filesLen], ","))
		}

		// create the resource
		err = createEmptyFile(file)
		if err != nil {
			t.Error(err)
		}
	}

	// all paths exist now
	config, err := newQemuHypervisorConfig(h)
	if err != nil {
		t.Fatal(err)
	}

	if config.HypervisorPath != h.Path {
		t.Errorf("Expected hypervisor path %v, got %v", h.Path, config.HypervisorPath)
	}

	if config.KernelPath != h.Kernel {
		t.Errorf("Expected kernel path %v, got %v", h.Kernel, config.KernelPath)
	}

	if config.ImagePath != h.Image {
		t.Errorf("Expected image path %v, got %v", h.Image, config.ImagePath)
	}
}

func TestNewAgentConfig(t *testing.T) {
	dir, err := ioutil.TempDir(testDir, "agent-config-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	agentPauseRootPath := path.Join(dir, "agentPauseRoot")

	a := agent{
		PauseRootPath: agentPauseRootPath,
	}

	_, err = newAgentConfig(a)
	if err == nil {
		t.Fatalf("Expected newAgentConfig to fail as pause root path does not exist")
	}

	err = os.MkdirAll(agentPauseRootPath, testDirMode)
	if err != nil {
		t.Fatal(err)
	}

	pauseRoot, err := newAgentConfig(a)
	if err != nil {
		t.Fatalf("newAgentConfig failed unexpectedly: %v", err)
	}

	if pauseRoot != agentPauseRootPath {
		t.Errorf("Expected pause root path %v, got %v", agentPauseRootPath, pauseRoot)
	}
}

func TestNewShimConfig(t *testing.T) {
	dir, err := ioutil.TempDir(testDir, "shim-config-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	shimPath := path.Join(dir, "shim")

	s := shim{
		Path: shimPath,
	}

	_, err = newShimConfig(s)
	if err == nil {
		t.Fatalf("Expected newShimConfig to fail as no paths exist")
	}

	err = createEmptyFile(shimPath)
	if err != nil {
		t.Error(err)
	}

	resolved, err := newShimConfig(s)
	if err != nil {
		t.Fatalf("newShimConfig failed unexpectedly: %v", err)
	}

	if resolved != shimPath {
		t.Errorf("Expected shim path %v, got %v", shimPath, resolved)
	}
}

func TestHypervisorDefaults(t *testing.T) {
	h := hypervisor{}

	assert.Equal(t, h.path(), defaultHypervisorPath, "default hypervisor path wrong")
	assert.Equal(t, h.kernel(), defaultKernelPath, "default hypervisor kernel wrong")
	assert.Equal(t, h.image(), defaultImagePath, "default hypervisor image wrong")

	hpath := "/foo"
	h.Path = hpath
	assert.Equal(t, h.path(), hpath, "custom hypervisor path wrong")

	kernel := "wibble"
	h.Kernel = kernel
	assert.Equal(t, h.kernel(), kernel, "custom hypervisor kernel wrong")

	image := "foo"
	h.Image = image
	assert.Equal(t, h.image(), image, "custom hypervisor image wrong")
}

func TestShimDefaults(t *testing.T) {
	s := shim{}

	assert.Equal(t, s.path(), defaultShimPath, "default shim path wrong")

	spath := "/foo/bar"
	s.Path = spath
	assert.Equal(t, s.path(), spath, "custom shim path wrong")
}

func TestAgentDefaults(t *testing.T) {
	a := agent{}

	assert.Equal(t, a.pauseRootPath(), defaultPauseRootPath, "default agent pause root path wrong")

	apath := "/foo/bar/baz"
	a.PauseRootPath = apath
	assert.Equal(t, a.pauseRootPath(), apath, "custom agent pause root path wrong")
}
