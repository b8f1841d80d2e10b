// Copyright (c) 2014,2015,2016 Docker, Inc.
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
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

var ptmxPath = "/dev/ptmx"

// Console represents a pseudo TTY.
type Console struct {
	io.ReadWriteCloser

	master    *os.File
	slavePath string
}

// isTerminal returns true if fd is a terminal, else false.
func isTerminal(fd uintptr) bool {
	var termios syscall.Termios
	_, _, err := syscall.Syscall(syscall.SYS_IOCTL, fd, syscall.TCGETS, uintptr(unsafe.Pointer(&termios)))
	return err == 0
}

// ConsoleFromFile creates a console from an already-open file.
func ConsoleFromFile(f *os.File) *Console {
	return &Console{
		master: f,
	}
}

// newConsole returns an initialized console that can be used within a
// container by copying bytes from the master side to the slave that is
// attached as the tty for the container's init process.
func newConsole() (*Console, error) {
	master, err := os.OpenFile(ptmxPath, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	if err := saneTerminal(master); err != nil {
		return nil, err
	}
	slavePath, err := ptsname(master)
	if err != nil {
		return nil, err
	}
	if err := unlockpt(master); err != nil {
		return nil, err
	}
	return &Console{
		slavePath: slavePath,
		master:    master,
	}, nil
}

// File returns the master side of the pty.
func (c *Console) File() *os.File {
	return c.master
}

// Path returns the path to the slave side of the pty.
func (c *Console) Path() string {
	return c.slavePath
}

func (c *Console) Read(b []byte) (int, error) {
	return c.master.Read(b)
}

func (c *Console) Write(b []byte) (int, error) {
	return c.master.Write(b)
}

func (c *Console) Close() error {
	if m := c.master; m != nil {
		return m.Close()
	}
	return nil
}

// unlockpt unlocks the slave pseudoterminal device corresponding to the
// master pseudoterminal referred to by f. It must be called before opening
// the slave side of a pty.
func unlockpt(f *os.File) error {
	var u int32
	if _, _, err := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.TIOCSPTLCK, uintptr(unsafe.Pointer(&u))); err != 0 {
		return err
	}
	return nil
}

// ptsname retrieves the name of the first available pts for the given
// master.
func ptsname(f *os.File) (string, error) {
	var u uint32
	if _, _, err := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.TIOCGPTN, uintptr(unsafe.Pointer(&u))); err != 0 {
		return "", err
	}
	return fmt.Sprintf("/dev/pts/%d", u), nil
}

// saneTerminal sets the necessary tty_ioctl(4)s to ensure that a pty pair
// created by us acts normally. In particular, a not-very-well-known default
// of Linux unix98 ptys is that they have +onlcr by default, which isn't a
// problem for terminal emulators but gets in the way when relaying raw
// container output.
func saneTerminal(terminal *os.File) error {
	var termios unix.Termios

	if _, _, err := unix.Syscall(unix.SYS_IOCTL, terminal.Fd(), unix.TCGETS, uintptr(unsafe.Pointer(&termios))); err != 0 {
		return fmt.Errorf("ioctl(tty, tcgets): %s", err.Error())
	}

	termios.Oflag &^= unix.ONLCR

	if _, _, err := unix.Syscall(unix.SYS_IOCTL, terminal.Fd(), unix.TCSETS, uintptr(unsafe.Pointer(&termios))); err != 0 {
		return fmt.Errorf("ioctl(tty, tcsets): %s", err.Error())
	}

	return nil
}

// setupConsole resolves the --console and --console-socket flags into a
// console path and whether that console should be wired up over a Unix
// socket (as containerd/CRI-O do) rather than a bind-mounted pty path.
func setupConsole(consolePath, consoleSocketPath string) (string, bool, error) {
	if consolePath != "" && consoleSocketPath != "" {
		return "", false, fmt.Errorf("only one of console and console-socket can be specified")
	}

	if consolePath != "" {
		return consolePath, false, nil
	}

	if consoleSocketPath == "" {
		return "", false, nil
	}

	console, err := newConsole()
	if err != nil {
		return "", false, err
	}

	conn, err := net.Dial("unix", consoleSocketPath)
	if err != nil {
		console.Close()
		return "", false, err
	}
	defer conn.Close()

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		console.Close()
		return "", false, fmt.Errorf("%s is not a valid unix socket", consoleSocketPath)
	}

	socketFile, err := unixConn.File()
	if err != nil {
		console.Close()
		return "", false, err
	}
	defer socketFile.Close()

	rights := unix.UnixRights(int(console.File().Fd()))
	if err := unix.Sendmsg(int(socketFile.Fd()), []byte(console.Path()), rights, nil, 0); err != nil {
		console.Close()
		return "", false, err
	}

	return console.Path(), true, nil
}
