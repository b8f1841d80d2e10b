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

// Default paths, overridable via the TOML configuration file read by
// loadConfiguration.
var (
	defaultRuntimeConfiguration = "/etc/novavm/configuration.toml"
	defaultHypervisorPath       = "/usr/bin/qemu-system-x86_64"
	defaultKernelPath           = "/usr/share/novavm/vmlinux.container"
	defaultImagePath            = "/usr/share/novavm/novavm-image.img"
	defaultPauseRootPath        = "/usr/share/novavm/pause"
)

// pauseBinRelativePath is the location of the pod-sandbox init binary
// relative to a pause root directory.
const pauseBinRelativePath = "bin/novavm-pause"
