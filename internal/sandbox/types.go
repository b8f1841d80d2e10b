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

// Package sandbox is the container lifecycle engine: the VM-launch
// pipeline, the proxy/hyperstart control-plane protocol, the persistent
// state-file discipline and the supporting hook and network machinery that
// a per-subcommand CLI invocation composes.
package sandbox

import (
	"time"
)

// ContainerStatus mirrors the lifecycle states recorded in the state file.
type ContainerStatus string

// The lifecycle states a container can be in.
const (
	StatusCreated  ContainerStatus = "created"
	StatusRunning  ContainerStatus = "running"
	StatusPaused   ContainerStatus = "paused"
	StatusStopping ContainerStatus = "stopping"
	StatusStopped  ContainerStatus = "stopped"
)

// Mount describes a single filesystem mount requested by the OCI spec.
type Mount struct {
	Source            string   `json:"source"`
	Destination       string   `json:"destination"`
	Type              string   `json:"type"`
	Options           []string `json:"options,omitempty"`
	Ignore            bool     `json:"ignore,omitempty"`
	CreatedParentPath string   `json:"createdParentPath,omitempty"`
	HostPath          string   `json:"hostPath,omitempty"`
}

// NamespaceType is one of the namespace kinds an OCI spec can request.
type NamespaceType string

// Namespace kinds honored (net) or recorded-but-inert (everything else).
const (
	NamespaceCgroup NamespaceType = "cgroup"
	NamespaceIPC    NamespaceType = "ipc"
	NamespaceMount  NamespaceType = "mount"
	NamespaceNet    NamespaceType = "network"
	NamespacePID    NamespaceType = "pid"
	NamespaceUser   NamespaceType = "user"
	NamespaceUTS    NamespaceType = "uts"
)

// Namespace is a single namespace entry from the OCI spec.
type Namespace struct {
	Type NamespaceType `json:"type"`
	Path string        `json:"path,omitempty"`
}

// Hook is a single lifecycle hook: an external program invoked with the
// current state document on stdin.
type Hook struct {
	Path    string            `json:"path"`
	Args    []string          `json:"args,omitempty"`
	Env     []string          `json:"env,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// Hooks groups the three lifecycle points a hook can attach to.
type Hooks struct {
	Prestart  []Hook `json:"prestart,omitempty"`
	Poststart []Hook `json:"poststart,omitempty"`
	Poststop  []Hook `json:"poststop,omitempty"`
}

// PodConfig describes the sandbox VM a set of containers can share,
// triggered by annotations in the ocid/ namespace.
type PodConfig struct {
	SandboxFlag    bool
	SandboxName    string
	SandboxWorkDir string
	RootfsMounts   []Mount

	// PauseBinPath is the host path of the novavm-pause binary run as
	// PID 1 of the sandbox VM when this container is the pod's infra
	// container.
	PauseBinPath string
}

// NetInterface is a single network interface discovered or configured for
// a container.
type NetInterface struct {
	IfName        string   `json:"ifName"`
	MACAddress    string   `json:"macAddress"`
	BridgeName    string   `json:"bridgeName"`
	TapName       string   `json:"tapName"`
	IPv4Addresses []string `json:"ipv4Addresses,omitempty"`
	IPv6Addresses []string `json:"ipv6Addresses,omitempty"`
	VFBased       bool     `json:"vfBased,omitempty"`
	PCIAddress    string   `json:"pciAddress,omitempty"`
	VhostUserPath string   `json:"vhostUserPath,omitempty"`
}

// NetworkConfig is the result of Network Configurer discovery, handed in
// memory to the VM launch pipeline's argument expansion.
type NetworkConfig struct {
	Gateway    string
	Interfaces []NetInterface
}

// VMConfig is the VM-specific subset of ContainerConfig: the paths and
// extra parameters that feed the Argument Expander.
type VMConfig struct {
	HypervisorPath string
	ImagePath      string
	KernelPath     string
	WorkloadPath   string
	KernelParams   string
	Pid            int
}

// ContainerConfig is the process-wide configuration assembled from the CLI
// flags, the runtime TOML config and the bundle's OCI document, scoped to a
// single subcommand invocation.
type ContainerConfig struct {
	ID              string
	BundlePath      string
	RuntimeRoot     string
	OCIVersion      string
	Console         string
	UseSocketConsole bool
	PidFile         string
	Detach          bool
	DryRun          bool
	Hostname        string
	ShimPath        string
	VM              VMConfig
	Process         Process
	Mounts          []Mount
	Namespaces      []Namespace
	Hooks           Hooks
	Annotations     map[string]string
	Network         NetworkConfig
	Pod             *PodConfig
}

// Process is the workload command to run inside the guest.
type Process struct {
	Args []string
	Env  []string
	Cwd  string
	Terminal bool
}

// ContainerState is the in-memory mirror of the on-disk state file plus the
// runtime-only socket paths needed to talk to a live container.
type ContainerState struct {
	Status            ContainerStatus
	WorkloadPid       int
	RuntimePath       string
	StateFilePath     string
	CommsSocketPath   string
	ProcessSocketPath string
}

// Cmd describes a command to run in a container's namespace. exec does not
// use it: it hands argv and env to ProxyClient.ExecCmd directly.
type Cmd struct {
	Args []string
	Env  []string
}
