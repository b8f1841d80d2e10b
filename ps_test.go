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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/novavm/runtime/internal/sandbox"
)

func TestPsMissingContainerID(t *testing.T) {
	err := ps("", "table", nil)
	assert.Error(t, err)
}

func TestPsMissingContainer(t *testing.T) {
	testingImpl.listContainersFunc = listContainersNone
	defer func() { testingImpl.listContainersFunc = nil }()

	err := ps("does-not-exist", "table", nil)
	assert.Error(t, err)
}

func TestPsNotRunning(t *testing.T) {
	testingImpl.listContainersFunc = func(root string) ([]*sandbox.StateFile, error) {
		return []*sandbox.StateFile{
			{
				ID:         testContainerID,
				Status:     sandbox.StatusCreated,
				BundlePath: "/bundle",
				Created:    time.Now().UTC(),
			},
		}, nil
	}
	defer func() { testingImpl.listContainersFunc = nil }()

	err := ps(testContainerID, "table", nil)
	assert.Error(t, err)
}
