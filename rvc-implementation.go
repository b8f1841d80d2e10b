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

// Description: The true internal/sandbox implementation of the RVC
// interface. This indirection is required to allow an alternative
// implementation to be used for testing purposes.

package main

import (
	"github.com/sirupsen/logrus"

	"github.com/novavm/runtime/internal/sandbox"
)

// sandboxImpl is the production RVC implementation, delegating every
// method to the internal/sandbox package-level functions.
type sandboxImpl struct{}

func (impl *sandboxImpl) SetLogger(logger logrus.FieldLogger) {
	sandbox.SetLogger(logger)
}

func (impl *sandboxImpl) CreateContainer(cfg *sandbox.ContainerConfig) (*sandbox.ContainerState, error) {
	return sandbox.CreateContainer(cfg)
}

func (impl *sandboxImpl) StartContainer(root, containerID string, hooks []sandbox.Hook) error {
	return sandbox.StartContainer(root, containerID, hooks)
}

func (impl *sandboxImpl) StopContainer(root, containerID string, mounts []sandbox.Mount, poststop []sandbox.Hook) error {
	return sandbox.StopContainer(root, containerID, mounts, poststop)
}

func (impl *sandboxImpl) KillContainer(root, containerID string, signum int) error {
	return sandbox.KillContainer(root, containerID, signum)
}

func (impl *sandboxImpl) DeleteContainer(root, containerID string) error {
	return sandbox.DeleteContainer(root, containerID)
}

func (impl *sandboxImpl) PauseContainer(root, containerID string) error {
	return sandbox.PauseContainer(root, containerID)
}

func (impl *sandboxImpl) ResumeContainer(root, containerID string) error {
	return sandbox.ResumeContainer(root, containerID)
}

func (impl *sandboxImpl) ListContainers(root string) ([]*sandbox.StateFile, error) {
	return sandbox.ListContainers(root)
}
