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
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// argsFileName is the basename of the hypervisor arguments template.
const argsFileName = "hypervisor.args"

// ExpansionContext carries every runtime-derived value the Argument
// Expander can substitute into a hypervisor.args template line.
type ExpansionContext struct {
	WorkloadDir      string
	Kernel           string
	KernelParams     string
	KernelNetParams  string
	Image            string
	ImageSizeBytes   int64
	CommsSocket      string
	ProcessSocket    string
	ConsoleDevice    string
	AgentCtlSocket   string
	AgentTTYSocket   string
}

// placeholders is the fixed token vocabulary recognized in the hypervisor
// argv template; anything not in this map is passed through unchanged.
func (c *ExpansionContext) placeholders(name, uuidStr string) map[string]string {
	shortName := uuidStr
	if idx := strings.LastIndex(uuidStr, "-"); idx >= 0 {
		shortName = uuidStr[idx+1:]
	}
	if name != "" {
		shortName = name
	}

	return map[string]string{
		"@WORKLOAD_DIR@":      c.WorkloadDir,
		"@KERNEL@":            c.Kernel,
		"@KERNEL_PARAMS@":     c.KernelParams,
		"@KERNEL_NET_PARAMS@": c.KernelNetParams,
		"@IMAGE@":             c.Image,
		"@SIZE@":              fmt.Sprintf("%d", c.ImageSizeBytes),
		"@COMMS_SOCKET@":      c.CommsSocket,
		"@PROCESS_SOCKET@":    c.ProcessSocket,
		"@CONSOLE_DEVICE@":    c.ConsoleDevice,
		"@NAME@":              shortName,
		"@UUID@":              uuidStr,
		"@AGENT_CTL_SOCKET@":  c.AgentCtlSocket,
		"@AGENT_TTY_SOCKET@":  c.AgentTTYSocket,
	}
}

// ArgsFilePath searches, in order, the bundle directory, the system config
// directory and the defaults directory for a hypervisor.args template,
// returning the path of the first hit.
func ArgsFilePath(bundleDir, sysconfDir, defaultsDir string) (string, error) {
	candidates := []string{
		filepath.Join(bundleDir, argsFileName),
		filepath.Join(sysconfDir, argsFileName),
		filepath.Join(defaultsDir, argsFileName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", &ConfigError{Reason: fmt.Sprintf("no %s found in %v", argsFileName, candidates)}
}

// ExpandArgs reads the arguments template at templatePath, resolves
// argv[0] against PATH if it is not absolute, and substitutes every
// placeholder token. Comment lines (beginning with # or whitespace then #)
// and blank lines are dropped.
func ExpandArgs(templatePath string, ctx *ExpansionContext) ([]string, error) {
	f, err := os.Open(templatePath)
	if err != nil {
		return nil, &IOError{Op: "open args template", Err: err}
	}
	defer f.Close()

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, &IOError{Op: "generate uuid", Err: err}
	}
	table := ctx.placeholders("", id.String())

	var args []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		expanded := expandTokens(trimmed, table)

		if first {
			expanded, err = resolveExecutable(expanded)
			if err != nil {
				return nil, err
			}
			first = false
		}

		args = append(args, expanded)
	}
	if err := scanner.Err(); err != nil {
		return nil, &IOError{Op: "read args template", Err: err}
	}

	return args, nil
}

// expandTokens substitutes every known placeholder in line; an unknown
// token (not present in table) is left untouched.
func expandTokens(line string, table map[string]string) string {
	for token, value := range table {
		line = strings.ReplaceAll(line, token, value)
	}
	return line
}

// resolveExecutable returns arg unchanged if it is already absolute,
// otherwise resolves it against PATH as the first hypervisor argument must
// name an executable.
func resolveExecutable(arg string) (string, error) {
	if filepath.IsAbs(arg) {
		return arg, nil
	}

	resolved, err := exec.LookPath(arg)
	if err != nil {
		return "", &ConfigError{Reason: fmt.Sprintf("cannot resolve hypervisor executable %q: %v", arg, err)}
	}
	return resolved, nil
}
