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

package sandbox

import (
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

// systemMountPrefixes are created by the guest agent within the VM itself; the
// host-side mount applier skips them rather than trying to bind-mount
// pseudo-filesystems that only make sense inside the guest.
var systemMountPrefixes = []string{"/proc", "/dev", "/sys"}

func isSystemMount(target string) bool {
	for _, p := range systemMountPrefixes {
		if target == p || strings.HasPrefix(target, p+"/") {
			return true
		}
	}
	return false
}

// applyMounts bind-mounts every non-system, non-ignored Mount onto its
// destination, creating the parent directory (and recording that fact for
// later cleanup) when needed.
func applyMounts(mounts []Mount, log logrus.FieldLogger) error {
	for i := range mounts {
		m := &mounts[i]
		if m.Ignore || isSystemMount(m.Destination) {
			continue
		}

		if _, err := os.Stat(m.Destination); os.IsNotExist(err) {
			if err := os.MkdirAll(m.Destination, 0755); err != nil {
				return &IOError{Op: "create mount destination " + m.Destination, Err: err}
			}
			m.CreatedParentPath = m.Destination
		}

		flags, data := parseMountOptions(m.Options)
		if err := syscall.Mount(m.Source, m.Destination, m.Type, flags, data); err != nil {
			return &IOError{Op: "mount " + m.Source + " -> " + m.Destination, Err: err}
		}
	}

	return nil
}

// unmountAll unmounts every non-ignored, non-system mount and removes any
// parent directory applyMounts created, logging but not failing on error
// since this runs during cleanup paths that must make forward progress.
func unmountAll(mounts []Mount, log logrus.FieldLogger) {
	for _, m := range mounts {
		if m.Ignore || isSystemMount(m.Destination) {
			continue
		}
		if err := syscall.Unmount(m.Destination, 0); err != nil {
			log.WithError(err).WithField("target", m.Destination).Warn("unmount failed")
		}
		if m.CreatedParentPath != "" {
			os.Remove(m.CreatedParentPath)
		}
	}
}

// parseMountOptions translates OCI-style string options into mount(2)
// flags plus a leftover data string, recognizing the common flag options
// and passing everything else through as filesystem-specific data.
func parseMountOptions(options []string) (uintptr, string) {
	var flags uintptr
	var data []string

	known := map[string]uintptr{
		"ro":         syscall.MS_RDONLY,
		"nosuid":     syscall.MS_NOSUID,
		"nodev":      syscall.MS_NODEV,
		"noexec":     syscall.MS_NOEXEC,
		"bind":       syscall.MS_BIND,
		"rbind":      syscall.MS_BIND | syscall.MS_REC,
		"remount":    syscall.MS_REMOUNT,
	}

	for _, opt := range options {
		if f, ok := known[opt]; ok {
			flags |= f
			continue
		}
		data = append(data, opt)
	}

	return flags, strings.Join(data, ",")
}

// signalFromInt converts a raw signal number into a syscall.Signal,
// isolated here so callers don't need to import syscall just for this cast.
func signalFromInt(n int) syscall.Signal {
	return syscall.Signal(n)
}
