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

// Description: Proxy Client opens the framed control channel to the proxy
// daemon and forwards hyperstart commands to it on the core's behalf.

package sandbox

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/novavm/runtime/internal/wire"
)

// waitForProxyTimeout bounds how long ConnectProxy will keep retrying a
// dial against the proxy socket before giving up; StartContainer also uses
// it to bound WaitForAgentSocket.
const waitForProxyTimeout = 5 * time.Second

// agentSocketPollInterval is how often cc_proxy_wait_until_ready's Go
// equivalent re-checks for the agent control socket's existence.
const agentSocketPollInterval = 50 * time.Millisecond

// ProxyClient is a connection to the proxy daemon's control socket.
type ProxyClient struct {
	conn net.Conn
	log  logrus.FieldLogger
}

// proxyResponse is the minimal response shape every control-channel reply
// conforms to.
type proxyResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// hyperEnvelope wraps a hyperstart command for the proxy, per
// {"id":"hyper","data":{"hyperName":<cmd>,"data":<payload>}}.
type hyperEnvelope struct {
	ID   string `json:"id"`
	Data struct {
		HyperName string          `json:"hyperName"`
		Data      json.RawMessage `json:"data"`
	} `json:"data"`
}

// ConnectProxy dials the proxy daemon's well-known Unix socket, retrying up
// to waitForProxyTimeout since the daemon may not yet have created it.
func ConnectProxy(socketPath string, log logrus.FieldLogger) (*ProxyClient, error) {
	deadline := time.Now().Add(waitForProxyTimeout)

	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			return &ProxyClient{conn: conn, log: log}, nil
		}
		lastErr = err
		time.Sleep(agentSocketPollInterval)
	}

	return nil, &IOError{Op: fmt.Sprintf("connect to proxy at %s", socketPath), Err: lastErr}
}

// connectProxyOnce dials the proxy socket a single time, for best-effort
// shutdown-path notifications that should not block retrying against a VM
// that may already be gone.
func connectProxyOnce(socketPath string, log logrus.FieldLogger) (*ProxyClient, error) {
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		return nil, &IOError{Op: fmt.Sprintf("connect to proxy at %s", socketPath), Err: err}
	}
	return &ProxyClient{conn: conn, log: log}, nil
}

// Close disconnects from the proxy without sending bye (used for the
// parent's connection to a proxy once it has handed the socket to the
// shim, per the VM launch pipeline's "disconnect-from-parent" step).
func (p *ProxyClient) Close() error {
	return p.conn.Close()
}

// Hello performs the handshake: hello carrying the container id and the
// agent's control/tty socket paths, then waits for success.
func (p *ProxyClient) Hello(containerID, ctlSerial, ioSerial string) error {
	payload, err := json.Marshal(struct {
		ID   string `json:"id"`
		Data struct {
			ContainerID string `json:"containerId"`
			CtlSerial   string `json:"ctlSerial"`
			IOSerial    string `json:"ioSerial"`
		} `json:"data"`
	}{
		ID: "hello",
		Data: struct {
			ContainerID string `json:"containerId"`
			CtlSerial   string `json:"ctlSerial"`
			IOSerial    string `json:"ioSerial"`
		}{containerID, ctlSerial, ioSerial},
	})
	if err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("marshal hello: %v", err)}
	}

	return p.roundTrip(payload)
}

// Bye sends the teardown message. Errors are logged but not fatal; the
// socket is closed regardless.
func (p *ProxyClient) Bye() error {
	payload, err := json.Marshal(struct {
		ID string `json:"id"`
	}{ID: "bye"})
	if err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("marshal bye: %v", err)}
	}

	err = p.roundTrip(payload)
	if closeErr := p.conn.Close(); closeErr != nil && p.log != nil {
		p.log.WithError(closeErr).Warn("error closing proxy connection after bye")
	}
	return err
}

// EncodeHyperCommand marshals a hyperstart command into the proxy's
// {"id":"hyper","data":{"hyperName":...,"data":...}} envelope. It is
// exported so that the shim, which writes winsize/killcontainer requests
// directly onto the same control channel for signal forwarding, builds
// them the same way the core does instead of hand-assembling JSON.
func EncodeHyperCommand(cmd string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("marshal hyperstart payload for %s: %v", cmd, err)}
	}

	var env hyperEnvelope
	env.ID = "hyper"
	env.Data.HyperName = cmd
	env.Data.Data = data

	framed, err := json.Marshal(env)
	if err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("marshal hyper envelope for %s: %v", cmd, err)}
	}

	return framed, nil
}

// HyperCommand wraps cmd/payload in the {"id":"hyper",...} envelope and
// sends it as a single request/response round trip.
func (p *ProxyClient) HyperCommand(cmd string, payload interface{}) error {
	framed, err := EncodeHyperCommand(cmd, payload)
	if err != nil {
		return err
	}

	return p.roundTrip(framed)
}

// AllocateIO requests a fresh I/O stream base sequence number from the
// proxy. The core reserves ioBase for stdin/stdout and ioBase+1 for
// stderr.
func (p *ProxyClient) AllocateIO() (ioBase uint64, err error) {
	payload, err := json.Marshal(struct {
		ID string `json:"id"`
	}{ID: "allocateIO"})
	if err != nil {
		return 0, &ProtocolError{Reason: fmt.Sprintf("marshal allocateIO: %v", err)}
	}

	if err := wire.WriteControlFrame(p.conn, payload); err != nil {
		return 0, &IOError{Op: "write allocateIO request", Err: err}
	}

	frame, err := wire.ReadControlFrame(p.conn)
	if err != nil {
		return 0, &IOError{Op: "read allocateIO response", Err: err}
	}

	var resp struct {
		Success *bool  `json:"success"`
		IOBase  uint64 `json:"ioBase"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return 0, &ProtocolError{Reason: fmt.Sprintf("unmarshal allocateIO response: %v", err)}
	}
	if err := checkSuccess(resp.Success, resp.Error); err != nil {
		return 0, err
	}

	return resp.IOBase, nil
}

// StartPod builds and sends the startpod hyperstart command.
func (p *ProxyClient) StartPod(hostname, shareDir string) error {
	return p.HyperCommand("startpod", struct {
		Hostname   string        `json:"hostname"`
		Containers []interface{} `json:"containers"`
		ShareDir   string        `json:"shareDir"`
	}{Hostname: hostname, Containers: []interface{}{}, ShareDir: shareDir})
}

// KillContainer sends killcontainer carrying the container id and signal.
func (p *ProxyClient) KillContainer(containerID string, signum int) error {
	return p.HyperCommand("killcontainer", struct {
		ContainerID string `json:"container_id"`
		Signal      int    `json:"signal"`
	}{containerID, signum})
}

// WinSize sends a terminal resize notification.
func (p *ProxyClient) WinSize(containerID string, rows, cols uint16) error {
	return p.HyperCommand("winsize", struct {
		ContainerID string `json:"container_id"`
		Row         uint16 `json:"row"`
		Col         uint16 `json:"col"`
	}{containerID, rows, cols})
}

// DestroyPod sends destroypod.
func (p *ProxyClient) DestroyPod() error {
	return p.HyperCommand("destroypod", struct{}{})
}

// NewContainer sends newcontainer, asking the guest agent to create and
// start the container's primary process. It is the create/start-time
// counterpart of ExecCmd, which opens a secondary session in an
// already-running container.
func (p *ProxyClient) NewContainer(containerID string, args, env []string, workdir string, terminal bool) error {
	return p.HyperCommand("newcontainer", struct {
		Container string   `json:"container"`
		Terminal  bool     `json:"terminal"`
		Args      []string `json:"args"`
		Envs      []string `json:"envs,omitempty"`
		Workdir   string   `json:"workdir,omitempty"`
	}{
		Container: containerID,
		Terminal:  terminal,
		Args:      args,
		Envs:      env,
		Workdir:   workdir,
	})
}

// ExecCmd sends execcmd, asking the guest agent to start a new process
// inside an already-running container.
func (p *ProxyClient) ExecCmd(containerID string, args, env []string, workdir string, terminal bool) error {
	return p.HyperCommand("execcmd", struct {
		Container string   `json:"container"`
		Terminal  bool     `json:"terminal"`
		Args      []string `json:"args"`
		Envs      []string `json:"envs,omitempty"`
		Workdir   string   `json:"workdir,omitempty"`
	}{
		Container: containerID,
		Terminal:  terminal,
		Args:      args,
		Envs:      env,
		Workdir:   workdir,
	})
}

// Ps sends a ps hyperstart command and returns the guest's raw process
// listing, formatted the same way `ps -ef` output would be.
func (p *ProxyClient) Ps(containerID, format string) (string, error) {
	framed, err := EncodeHyperCommand("ps", struct {
		Container string `json:"container"`
		Format    string `json:"format"`
	}{containerID, format})
	if err != nil {
		return "", err
	}

	if err := wire.WriteControlFrame(p.conn, framed); err != nil {
		return "", &IOError{Op: "write ps request", Err: err}
	}

	frame, err := wire.ReadControlFrame(p.conn)
	if err != nil {
		return "", &IOError{Op: "read ps response", Err: err}
	}

	var resp struct {
		Success *bool  `json:"success"`
		PsOut   string `json:"psOut"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return "", &ProtocolError{Reason: fmt.Sprintf("unmarshal ps response: %v", err)}
	}
	if err := checkSuccess(resp.Success, resp.Error); err != nil {
		return "", err
	}

	return resp.PsOut, nil
}

// roundTrip writes payload as a control frame and reads+validates exactly
// one response.
func (p *ProxyClient) roundTrip(payload []byte) error {
	if err := wire.WriteControlFrame(p.conn, payload); err != nil {
		return &IOError{Op: "write proxy control frame", Err: err}
	}

	frame, err := wire.ReadControlFrame(p.conn)
	if err != nil {
		return &IOError{Op: "read proxy control frame", Err: err}
	}

	var resp proxyResponse
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("unmarshal proxy response: %v", err)}
	}

	return checkSuccess(resp.Success, resp.Error)
}

// checkSuccess applies the conservative open-question resolution from the
// design notes: a response with success absent is treated as a protocol
// error, not assumed to be success.
func checkSuccess(success *bool, errMsg string) error {
	if success == nil {
		return &ProtocolError{Reason: "proxy response missing success field"}
	}
	if !*success {
		return &ProtocolError{Reason: fmt.Sprintf("proxy reported failure: %s", errMsg)}
	}
	return nil
}

// WaitForAgentSocket blocks until path exists on disk, polling
// defensively, mirroring cc_proxy_wait_until_ready's tolerance for the
// socket already existing by the time the watch starts.
func WaitForAgentSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return &IOError{Op: fmt.Sprintf("wait for agent socket %s", path), Err: fmt.Errorf("timed out after %s", timeout)}
		}
		time.Sleep(agentSocketPollInterval)
	}
}
