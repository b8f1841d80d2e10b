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
	"fmt"

	"github.com/blang/semver/v4"
)

// CompareVersions compares two OCI spec version strings per SemVer 2.0
// precedence rules and returns <0, 0, >0 the way strcmp-style comparators
// do. Numeric identifiers compare numerically; pre-release identifiers
// compare per SemVer 2.0 (numeric vs alphanumeric, fewer identifiers before
// more, and "no pre-release" outranks "has pre-release").
func CompareVersions(a, b string) (int, error) {
	va, err := semver.ParseTolerant(a)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", a, err)
	}
	vb, err := semver.ParseTolerant(b)
	if err != nil {
		return 0, fmt.Errorf("parse version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}

// SupportedSpecVersion is the highest OCI runtime spec version this
// runtime understands.
const SupportedSpecVersion = "1.0.0"

// CheckSpecVersion validates that version is no newer than
// SupportedSpecVersion, returning a ConfigError otherwise.
func CheckSpecVersion(version string) error {
	cmp, err := CompareVersions(version, SupportedSpecVersion)
	if err != nil {
		return &ConfigError{Reason: fmt.Sprintf("invalid spec version %q: %v", version, err)}
	}
	if cmp > 0 {
		return &ConfigError{Reason: fmt.Sprintf("unsupported spec version %q (supported up to %q)", version, SupportedSpecVersion)}
	}
	return nil
}
