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

// Description: This file introduces an interface any sandbox-engine
// implementation must conform to. It is used to allow the underlying
// internal/sandbox package to be swapped for a mock implementation for
// testing purposes.

package rvc

import (
	"github.com/sirupsen/logrus"

	// All implementations need to manipulate the official types
	"github.com/novavm/runtime/internal/sandbox"
)

// RVC is a Runtime VM-Container implementation.
type RVC interface {
	SetLogger(logger logrus.FieldLogger)

	CreateContainer(cfg *sandbox.ContainerConfig) (*sandbox.ContainerState, error)
	StartContainer(root, containerID string, hooks []sandbox.Hook) error
	StopContainer(root, containerID string, mounts []sandbox.Mount, poststop []sandbox.Hook) error
	KillContainer(root, containerID string, signum int) error
	DeleteContainer(root, containerID string) error
	PauseContainer(root, containerID string) error
	ResumeContainer(root, containerID string) error
	ListContainers(root string) ([]*sandbox.StateFile, error)
}
