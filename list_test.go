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
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli"

	"github.com/novavm/runtime/internal/sandbox"
)

var testStatuses = []fullContainerState{
	{
		containerState: containerState{
			Version:        "",
			ID:             "1",
			InitProcessPid: 1234,
			Status:         "running",
			Bundle:         "/somewhere/over/the/rainbow",
			Created:        time.Now().UTC(),
			Annotations:    map[string]string(nil),
		},
		hypervisorDetails: hypervisorDetails{
			HypervisorPath: "/hypervisor/path",
			ImagePath:      "/image/path",
			KernelPath:     "/kernel/path",
		},
	},
	{
		containerState: containerState{
			Version:        "",
			ID:             "2",
			InitProcessPid: 2345,
			Status:         "stopped",
			Bundle:         "/this/path/is/invalid",
			Created:        time.Now().UTC(),
			Annotations:    map[string]string(nil),
		},
		hypervisorDetails: hypervisorDetails{
			HypervisorPath: "/hypervisor/path2",
			ImagePath:      "/image/path2",
			KernelPath:     "/kernel/path2",
		},
	},
	{
		containerState: containerState{
			Version:        "",
			ID:             "3",
			InitProcessPid: 9999,
			Status:         "created",
			Bundle:         "/foo/bar/baz",
			Created:        time.Now().UTC(),
			Annotations:    map[string]string(nil),
		},
		hypervisorDetails: hypervisorDetails{
			HypervisorPath: "/hypervisor/path3",
			ImagePath:      "/image/path3",
			KernelPath:     "/kernel/path3",
		},
	},
}

func TestListGetHypervisorDetailsWithSymLinks(t *testing.T) {
	tmpDir, err := ioutil.TempDir(testDir, "hypervisor-details-")
	if err != nil {
		t.Error(err)
	}
	defer os.RemoveAll(tmpDir)

	kernel := path.Join(tmpDir, "kernel")
	image := path.Join(tmpDir, "image")
	hypervisor := path.Join(tmpDir, "hypervisor")

	kernelLink := path.Join(tmpDir, "link-to-kernel")
	imageLink := path.Join(tmpDir, "link-to-image")
	hypervisorLink := path.Join(tmpDir, "link-to-hypervisor")

	type testData struct {
		file    string
		symLink string
	}

	for _, d := range []testData{
		{kernel, kernelLink},
		{image, imageLink},
		{hypervisor, hypervisorLink},
	} {
		err = createEmptyFile(d.file)
		if err != nil {
			t.Error(err)
		}

		err = syscall.Symlink(d.file, d.symLink)
		if err != nil {
			t.Error(err)
		}
	}

	runtimeConfig := RuntimeConfig{
		KernelPath:     kernelLink,
		ImagePath:      imageLink,
		HypervisorPath: hypervisorLink,
	}

	expected := hypervisorDetails{
		KernelPath:     kernel,
		ImagePath:      image,
		HypervisorPath: hypervisor,
	}

	result, err := getHypervisorDetails(runtimeConfig)
	if err != nil {
		t.Error(err)
	}

	assert.Equal(t, result, expected, "hypervisor configs")
}

func formatListDataAsBytes(formatter formatState, state []fullContainerState, showAll bool) (bytes []byte, err error) {
	tmpfile, err := ioutil.TempFile("", "formatListData-")
	if err != nil {
		return nil, err
	}

	defer os.Remove(tmpfile.Name())

	err = formatter.Write(state, showAll, tmpfile)
	if err != nil {
		return nil, err
	}

	tmpfile.Close()

	return ioutil.ReadFile(tmpfile.Name())
}

func formatListDataAsString(formatter formatState, state []fullContainerState, showAll bool) (lines []string, err error) {
	bytes, err := formatListDataAsBytes(formatter, state, showAll)
	if err != nil {
		return nil, err
	}

	lines = strings.Split(string(bytes), "\n")

	// Remove last line if empty
	length := len(lines)
	last := lines[length-1]
	if last == "" {
		lines = lines[:length-1]
	}

	return lines, nil
}

func TestStateToIDList(t *testing.T) {
	// no header
	expectedLength := len(testStatuses)

	// showAll should not affect the output
	for _, showAll := range []bool{true, false} {
		lines, err := formatListDataAsString(&formatIDList{}, testStatuses, showAll)
		if err != nil {
			t.Fatal(err)
		}

		var expected []string
		for _, s := range testStatuses {
			expected = append(expected, s.ID)
		}

		length := len(lines)

		if length != expectedLength {
			t.Fatalf("Expected %d lines, got %d: %v", expectedLength, length, lines)
		}

		assert.Equal(t, lines, expected, "lines + expected")
	}
}

func TestStateToTabular(t *testing.T) {
	// +1 for header line
	expectedLength := len(testStatuses) + 1

	expectedDefaultHeaderPattern := `\AID\s+PID\s+STATUS\s+BUNDLE\s+CREATED`
	expectedExtendedHeaderPattern := `HYPERVISOR\s+KERNEL\s+IMAGE`
	endingPattern := `\s*\z`

	lines, err := formatListDataAsString(&formatTabular{}, testStatuses, false)
	if err != nil {
		t.Fatal(err)
	}

	length := len(lines)

	expectedHeaderPattern := expectedDefaultHeaderPattern + endingPattern
	expectedHeaderRE := regexp.MustCompile(expectedHeaderPattern)

	if length != expectedLength {
		t.Fatalf("Expected %d lines, got %d", expectedLength, length)
	}

	header := lines[0]

	if expectedHeaderRE.FindAllStringSubmatch(header, -1) == nil {
		t.Fatalf("Header line failed to match:\npattern : %v\nline    : %v\n", expectedDefaultHeaderPattern, header)
	}

	for i, status := range testStatuses {
		line := lines[i+1]

		expectedLinePattern := fmt.Sprintf(`\A%s\s+%d\s+%s\s+%s\s+%s\s*\z`,
			regexp.QuoteMeta(status.ID),
			status.InitProcessPid,
			regexp.QuoteMeta(status.Status),
			regexp.QuoteMeta(status.Bundle),
			regexp.QuoteMeta(status.Created.Format(time.RFC3339Nano)))

		if regexp.MustCompile(expectedLinePattern).FindAllStringSubmatch(line, -1) == nil {
			t.Fatalf("Data line failed to match:\npattern : %v\nline    : %v\n", expectedLinePattern, line)
		}
	}

	// Try again with full details this time
	lines, err = formatListDataAsString(&formatTabular{}, testStatuses, true)
	if err != nil {
		t.Fatal(err)
	}

	length = len(lines)

	expectedHeaderPattern = expectedDefaultHeaderPattern + `\s+` + expectedExtendedHeaderPattern + endingPattern
	expectedHeaderRE = regexp.MustCompile(expectedHeaderPattern)

	if length != expectedLength {
		t.Fatalf("Expected %d lines, got %d", expectedLength, length)
	}

	header = lines[0]

	if expectedHeaderRE.FindAllStringSubmatch(header, -1) == nil {
		t.Fatalf("Header line failed to match:\npattern : %v\nline    : %v\n", expectedDefaultHeaderPattern, header)
	}

	for i, status := range testStatuses {
		line := lines[i+1]

		expectedLinePattern := fmt.Sprintf(`\A%s\s+%d\s+%s\s+%s\s+%s\s+%s\s+%s\s+%s\s*\z`,
			regexp.QuoteMeta(status.ID),
			status.InitProcessPid,
			regexp.QuoteMeta(status.Status),
			regexp.QuoteMeta(status.Bundle),
			regexp.QuoteMeta(status.Created.Format(time.RFC3339Nano)),
			regexp.QuoteMeta(status.hypervisorDetails.HypervisorPath),
			regexp.QuoteMeta(status.hypervisorDetails.KernelPath),
			regexp.QuoteMeta(status.hypervisorDetails.ImagePath))

		if regexp.MustCompile(expectedLinePattern).FindAllStringSubmatch(line, -1) == nil {
			t.Fatalf("Data line failed to match:\npattern : %v\nline    : %v\n", expectedLinePattern, line)
		}
	}
}

func TestStateToJSON(t *testing.T) {
	expectedLength := len(testStatuses)

	// showAll should not affect the output
	for _, showAll := range []bool{true, false} {
		bytes, err := formatListDataAsBytes(&formatJSON{}, testStatuses, showAll)
		if err != nil {
			t.Fatal(err)
		}

		states := make([]fullContainerState, 0, len(testStatuses))

		err = json.Unmarshal(bytes, &states)
		if err != nil {
			t.Fatal(err)
		}

		if len(states) != expectedLength {
			t.Fatalf("Expected %d lines, got %d", expectedLength, len(states))
		}

		for i := 0; i < expectedLength; i++ {
			// remove monotonic time part, stripped out during marshaling
			testStatuses[i].Created = testStatuses[i].Created.Truncate(0)
		}

		assert.Equal(t, states, testStatuses, "states + testStatuses")
	}
}

func TestListCLIFunctionNoContainers(t *testing.T) {
	app := cli.NewApp()
	ctx := cli.NewContext(app, nil, nil)
	app.Name = "foo"
	ctx.App.Metadata = map[string]interface{}{
		"foo": "bar",
	}

	fn, ok := listCommand.Action.(func(context *cli.Context) error)
	assert.True(t, ok)

	err := fn(ctx)

	// no config in the Metadata
	assert.Error(t, err)
}

func TestListGetContainersListFail(t *testing.T) {
	assert := assert.New(t)

	testingImpl.listContainersFunc = nil
	testingImpl.forceFailure = true
	defer func() {
		testingImpl.forceFailure = false
	}()

	tmpdir, err := ioutil.TempDir(testDir, "")
	assert.NoError(err)
	defer os.RemoveAll(tmpdir)

	app := cli.NewApp()
	ctx := cli.NewContext(app, nil, nil)
	app.Name = "foo"

	runtimeConfig, err := newTestRuntimeConfig(tmpdir, "")
	assert.NoError(err)

	ctx.App.Metadata = map[string]interface{}{
		"runtimeConfig": runtimeConfig,
	}

	_, err = getContainers(ctx)
	assert.Error(err)
	assert.True(isMockError(err))
}

func TestListGetContainersNone(t *testing.T) {
	assert := assert.New(t)

	testingImpl.listContainersFunc = listContainersNone
	defer func() {
		testingImpl.listContainersFunc = nil
	}()

	tmpdir, err := ioutil.TempDir(testDir, "")
	assert.NoError(err)
	defer os.RemoveAll(tmpdir)

	app := cli.NewApp()
	ctx := cli.NewContext(app, nil, nil)
	app.Name = "foo"

	runtimeConfig, err := newTestRuntimeConfig(tmpdir, "")
	assert.NoError(err)

	ctx.App.Metadata = map[string]interface{}{
		"runtimeConfig": runtimeConfig,
	}

	state, err := getContainers(ctx)
	assert.NoError(err)
	assert.Equal(state, []fullContainerState(nil))
}

func TestListGetContainersOneContainer(t *testing.T) {
	assert := assert.New(t)

	testingImpl.listContainersFunc = func(root string) ([]*sandbox.StateFile, error) {
		return []*sandbox.StateFile{
			{
				ID:          testContainerID,
				Status:      sandbox.StatusRunning,
				Pid:         os.Getpid(),
				BundlePath:  "/bundle",
				Created:     time.Now().UTC(),
				Annotations: map[string]string{},
			},
		}, nil
	}

	defer func() {
		testingImpl.listContainersFunc = nil
	}()

	tmpdir, err := ioutil.TempDir(testDir, "")
	assert.NoError(err)
	defer os.RemoveAll(tmpdir)

	app := cli.NewApp()
	ctx := cli.NewContext(app, nil, nil)
	app.Name = "foo"

	runtimeConfig, err := newTestRuntimeConfig(tmpdir, "")
	assert.NoError(err)

	ctx.App.Metadata = map[string]interface{}{
		"runtimeConfig": runtimeConfig,
	}

	states, err := getContainers(ctx)
	assert.NoError(err)
	assert.Len(states, 1)
	assert.Equal(testContainerID, states[0].ID)
	assert.Equal(string(sandbox.StatusRunning), states[0].Status)
}

func TestListCLIFunctionFormatFail(t *testing.T) {
	assert := assert.New(t)

	tmpdir, err := ioutil.TempDir(testDir, "")
	assert.NoError(err)
	defer os.RemoveAll(tmpdir)

	quietFlags := flag.NewFlagSet("test", 0)
	quietFlags.Bool("quiet", true, "")

	tableFlags := flag.NewFlagSet("test", 0)
	tableFlags.String("format", "table", "")

	jsonFlags := flag.NewFlagSet("test", 0)
	jsonFlags.String("format", "json", "")

	invalidFlags := flag.NewFlagSet("test", 0)
	invalidFlags.String("format", "not-a-valid-format", "")

	type testData struct {
		format string
		flags  *flag.FlagSet
	}

	data := []testData{
		{"quiet", quietFlags},
		{"table", tableFlags},
		{"json", jsonFlags},
		{"invalid", invalidFlags},
	}

	testingImpl.listContainersFunc = func(root string) ([]*sandbox.StateFile, error) {
		return []*sandbox.StateFile{
			{ID: testContainerID, Status: sandbox.StatusRunning, Created: time.Now().UTC()},
		}, nil
	}
	defer func() {
		testingImpl.listContainersFunc = nil
	}()

	savedOutputFile := defaultOutputFile
	defer func() {
		defaultOutputFile = savedOutputFile
	}()

	// purposely invalid: *os.File methods return ErrInvalid on a nil
	// receiver rather than panicking.
	var invalidFile *os.File
	defaultOutputFile = invalidFile

	for _, d := range data {
		app := cli.NewApp()
		ctx := cli.NewContext(app, d.flags, nil)
		app.Name = "foo"
		ctx.App.Metadata = map[string]interface{}{
			"foo": "bar",
		}

		fn, ok := listCommand.Action.(func(context *cli.Context) error)
		assert.True(ok, d)

		err = fn(ctx)

		// no config in the Metadata
		assert.Error(err, d)

		runtimeConfig, err := newTestRuntimeConfig(tmpdir, "")
		assert.NoError(err, d)

		ctx.App.Metadata["runtimeConfig"] = runtimeConfig

		err = fn(ctx)
		assert.Error(err, d)
	}
}

func TestListCLIFunctionQuiet(t *testing.T) {
	assert := assert.New(t)

	tmpdir, err := ioutil.TempDir(testDir, "")
	assert.NoError(err)
	defer os.RemoveAll(tmpdir)

	runtimeConfig, err := newTestRuntimeConfig(tmpdir, "")
	assert.NoError(err)

	testingImpl.listContainersFunc = func(root string) ([]*sandbox.StateFile, error) {
		return []*sandbox.StateFile{
			{
				ID:      testContainerID,
				Status:  sandbox.StatusRunning,
				Created: time.Now().UTC(),
			},
		}, nil
	}

	defer func() {
		testingImpl.listContainersFunc = nil
	}()

	set := flag.NewFlagSet("test", 0)
	set.Bool("quiet", true, "")

	app := cli.NewApp()
	ctx := cli.NewContext(app, set, nil)
	app.Name = "foo"
	ctx.App.Metadata = map[string]interface{}{
		"runtimeConfig": runtimeConfig,
	}

	savedOutputFile := defaultOutputFile
	defer func() {
		defaultOutputFile = savedOutputFile
	}()

	output := filepath.Join(tmpdir, "output")
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_SYNC, testFileMode)
	assert.NoError(err)
	defer f.Close()

	defaultOutputFile = f

	fn, ok := listCommand.Action.(func(context *cli.Context) error)
	assert.True(ok)

	err = fn(ctx)
	assert.NoError(err)
	f.Close()

	text, err := getFileContents(output)
	assert.NoError(err)

	trimmed := strings.TrimSpace(text)
	assert.Equal(testContainerID, trimmed)
}
