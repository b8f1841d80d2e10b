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

// Description: the mock RVC implementation used by the CLI test suite.
// Every method can either delegate to the real sandbox package, return a
// recognisable forced error, or run a per-test override function.

package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/novavm/runtime/internal/sandbox"
)

// mockErrorPrefix prefixes every error the mock implementation returns
// itself, so tests can recognise it with isMockError().
const mockErrorPrefix = "mockImpl forced failure"

// mockImpl is a mock RVC implementation type.
type mockImpl struct {
	forceFailure bool

	createContainerFunc func(cfg *sandbox.ContainerConfig) (*sandbox.ContainerState, error)
	startContainerFunc  func(root, containerID string, hooks []sandbox.Hook) error
	stopContainerFunc   func(root, containerID string, mounts []sandbox.Mount, poststop []sandbox.Hook) error
	killContainerFunc   func(root, containerID string, signum int) error
	deleteContainerFunc func(root, containerID string) error
	pauseContainerFunc  func(root, containerID string) error
	resumeContainerFunc func(root, containerID string) error
	listContainersFunc  func(root string) ([]*sandbox.StateFile, error)
}

func (impl *mockImpl) SetLogger(logger logrus.FieldLogger) {}

func (impl *mockImpl) CreateContainer(cfg *sandbox.ContainerConfig) (*sandbox.ContainerState, error) {
	if impl.createContainerFunc != nil {
		return impl.createContainerFunc(cfg)
	}
	if impl.forceFailure {
		return nil, fmt.Errorf("%s: CreateContainer: %v", mockErrorPrefix, cfg.ID)
	}
	return sandbox.CreateContainer(cfg)
}

func (impl *mockImpl) StartContainer(root, containerID string, hooks []sandbox.Hook) error {
	if impl.startContainerFunc != nil {
		return impl.startContainerFunc(root, containerID, hooks)
	}
	if impl.forceFailure {
		return fmt.Errorf("%s: StartContainer: %v", mockErrorPrefix, containerID)
	}
	return sandbox.StartContainer(root, containerID, hooks)
}

func (impl *mockImpl) StopContainer(root, containerID string, mounts []sandbox.Mount, poststop []sandbox.Hook) error {
	if impl.stopContainerFunc != nil {
		return impl.stopContainerFunc(root, containerID, mounts, poststop)
	}
	if impl.forceFailure {
		return fmt.Errorf("%s: StopContainer: %v", mockErrorPrefix, containerID)
	}
	return sandbox.StopContainer(root, containerID, mounts, poststop)
}

func (impl *mockImpl) KillContainer(root, containerID string, signum int) error {
	if impl.killContainerFunc != nil {
		return impl.killContainerFunc(root, containerID, signum)
	}
	if impl.forceFailure {
		return fmt.Errorf("%s: KillContainer: %v", mockErrorPrefix, containerID)
	}
	return sandbox.KillContainer(root, containerID, signum)
}

func (impl *mockImpl) DeleteContainer(root, containerID string) error {
	if impl.deleteContainerFunc != nil {
		return impl.deleteContainerFunc(root, containerID)
	}
	if impl.forceFailure {
		return fmt.Errorf("%s: DeleteContainer: %v", mockErrorPrefix, containerID)
	}
	return sandbox.DeleteContainer(root, containerID)
}

func (impl *mockImpl) PauseContainer(root, containerID string) error {
	if impl.pauseContainerFunc != nil {
		return impl.pauseContainerFunc(root, containerID)
	}
	if impl.forceFailure {
		return fmt.Errorf("%s: PauseContainer: %v", mockErrorPrefix, containerID)
	}
	return sandbox.PauseContainer(root, containerID)
}

func (impl *mockImpl) ResumeContainer(root, containerID string) error {
	if impl.resumeContainerFunc != nil {
		return impl.resumeContainerFunc(root, containerID)
	}
	if impl.forceFailure {
		return fmt.Errorf("%s: ResumeContainer: %v", mockErrorPrefix, containerID)
	}
	return sandbox.ResumeContainer(root, containerID)
}

func (impl *mockImpl) ListContainers(root string) ([]*sandbox.StateFile, error) {
	if impl.listContainersFunc != nil {
		return impl.listContainersFunc(root)
	}
	if impl.forceFailure {
		return nil, fmt.Errorf("%s: ListContainers", mockErrorPrefix)
	}
	return sandbox.ListContainers(root)
}

func isMockError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), mockErrorPrefix)
}

func listContainersNone(root string) ([]*sandbox.StateFile, error) {
	return nil, nil
}
