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

// Description: novavm-shim is the standalone I/O and signal bridge. It is
// launched as the workload process the orchestrator waits on: it forwards
// stdin to the proxy as framed stream payloads, demultiplexes stdout/stderr
// by sequence number, forwards caught signals as winsize/killcontainer
// proxy commands, and exits with the guest workload's reported status.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/novavm/runtime/internal/sandbox"
	"github.com/novavm/runtime/internal/wire"
)

var log = logrus.New()

func main() {
	containerID := flag.String("id", "", "container id")
	ioSocketPath := flag.String("io-socket", "", "path to the proxy I/O unix socket")
	ctlSocketPath := flag.String("ctl-socket", "", "path to the proxy control unix socket")
	ioBase := flag.Uint64("io-base", 0, "allocated stdio sequence base")
	flag.Parse()

	log.SetFormatter(&logrus.TextFormatter{})

	if *containerID == "" || *ioSocketPath == "" || *ctlSocketPath == "" {
		fmt.Fprintln(os.Stderr, "novavm-shim: --id, --io-socket and --ctl-socket are required")
		os.Exit(1)
	}

	exitCode, err := run(*containerID, *ioSocketPath, *ctlSocketPath, *ioBase)
	if err != nil {
		log.WithError(err).Error("shim exiting on error")
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func run(containerID, ioSocketPath, ctlSocketPath string, ioBase uint64) (int, error) {
	ioConn, err := net.Dial("unix", ioSocketPath)
	if err != nil {
		return 1, fmt.Errorf("connect proxy io socket: %w", err)
	}
	defer ioConn.Close()

	ctlConn, err := net.Dial("unix", ctlSocketPath)
	if err != nil {
		return 1, fmt.Errorf("connect proxy ctl socket: %w", err)
	}
	defer ctlConn.Close()

	sigCh := make(chan os.Signal, 64)
	signal.Notify(sigCh,
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT,
		syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGWINCH)
	defer signal.Stop(sigCh)

	stdoutSeq := ioBase
	stderrSeq := ioBase + 1

	stdinFrames := make(chan []byte, 16)
	go pumpStdin(stdinFrames)

	inboundFrames := make(chan *wire.StreamFrame, 16)
	inboundErrs := make(chan error, 1)
	go pumpInbound(ioConn, inboundFrames, inboundErrs)

	ctlErrs := make(chan error, 1)
	go pumpControl(ctlConn, ctlErrs)

	exiting := false

	for {
		select {
		case sig := <-sigCh:
			if err := handleSignal(ctlConn, containerID, ioBase, sig); err != nil {
				log.WithError(err).Warn("failed to forward signal to proxy")
			}

		case chunk, ok := <-stdinFrames:
			if !ok {
				stdinFrames = nil
				continue
			}
			if err := wire.WriteStreamFrame(ioConn, ioBase, chunk); err != nil {
				return 1, fmt.Errorf("write stdin frame: %w", err)
			}

		case frame, ok := <-inboundFrames:
			if !ok {
				inboundFrames = nil
				continue
			}

			switch {
			case frame.IsEOF():
				exiting = true

			case exiting && len(frame.Payload) == 1:
				return int(frame.Payload[0]), nil

			case frame.Sequence == stdoutSeq:
				os.Stdout.Write(frame.Payload)

			case frame.Sequence == stderrSeq:
				os.Stderr.Write(frame.Payload)
			}

		case err := <-inboundErrs:
			return 1, fmt.Errorf("proxy io connection closed: %w", err)

		case err := <-ctlErrs:
			return 1, fmt.Errorf("proxy control connection closed: %w", err)
		}
	}
}

// pumpControl reads and logs control-channel responses, reporting EOF or
// any read error back so the main loop can exit.
func pumpControl(conn net.Conn, errCh chan<- error) {
	for {
		frame, err := wire.ReadControlFrame(conn)
		if err != nil {
			errCh <- err
			return
		}
		log.WithField("payload", string(frame.Payload)).Debug("proxy control response")
	}
}

// pumpStdin forwards chunks read from the shim's own stdin onto frames,
// closing the channel on EOF or read error.
func pumpStdin(out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 32*1024)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			return
		}
	}
}

// pumpInbound reads stream frames off the proxy I/O connection.
func pumpInbound(conn net.Conn, out chan<- *wire.StreamFrame, errCh chan<- error) {
	defer close(out)
	for {
		frame, err := wire.ReadStreamFrame(conn)
		if err != nil {
			errCh <- err
			return
		}
		out <- frame
	}
}

// winsize mirrors struct winsize from sys/ioctl.h, queried via TIOCGWINSZ.
type winsize struct {
	Row, Col, Xpixel, Ypixel uint16
}

// handleSignal translates a caught signal into the matching hyperstart
// command: SIGWINCH queries terminal size and sends winsize; anything else
// sends killcontainer carrying the numeric signal.
func handleSignal(conn net.Conn, containerID string, ioBase uint64, sig os.Signal) error {
	if sig == syscall.SIGWINCH {
		ws, err := getWinsize()
		if err != nil {
			// Not fatal: a shim with no controlling terminal (e.g. under
			// test, or when launched without -t) still forwards a
			// best-effort geometry rather than dropping the resize.
			ws = &winsize{}
		}
		framed, err := sandbox.EncodeHyperCommand("winsize", struct {
			Container string `json:"container_id"`
			Row       uint16 `json:"row"`
			Col       uint16 `json:"col"`
		}{containerID, ws.Row, ws.Col})
		if err != nil {
			return err
		}
		return wire.WriteControlFrame(conn, framed)
	}

	signum := int(sig.(syscall.Signal))
	framed, err := sandbox.EncodeHyperCommand("killcontainer", struct {
		Container string `json:"container_id"`
		Signal    int    `json:"signal"`
	}{containerID, signum})
	if err != nil {
		return err
	}
	return wire.WriteControlFrame(conn, framed)
}

func getWinsize() (*winsize, error) {
	ws := &winsize{}
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL,
		uintptr(os.Stdout.Fd()), uintptr(syscall.TIOCGWINSZ), uintptr(unsafe.Pointer(ws)))
	if errno != 0 {
		return nil, errno
	}
	return ws, nil
}
