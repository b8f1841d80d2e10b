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

// Description: Network Configurer discovers interfaces inside the network
// namespace, constructs tap/bridge plumbing for each veth, and produces
// guest-boot parameters.

package sandbox

import (
	"fmt"
	"net"
	"strings"

	"github.com/containernetworking/plugins/pkg/ns"
	iptables "github.com/coreos/go-iptables/iptables"
	sysctl "github.com/lorenzosaino/go-sysctl"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

// DiscoverInterfaces scans the network namespace at nsPath (empty string
// means the caller's current namespace) for non-loopback interfaces that
// carry an assigned address, capturing MAC and IP details for each.
// Discovery is tolerant of partial results: a namespace with no usable
// interfaces is not an error, it just yields an isolated guest.
func DiscoverInterfaces(nsPath string, log logrus.FieldLogger) (*NetworkConfig, error) {
	cfg := &NetworkConfig{}

	discover := func() error {
		links, err := netlink.LinkList()
		if err != nil {
			return &IOError{Op: "list network links", Err: err}
		}

		for _, link := range links {
			attrs := link.Attrs()
			if attrs.Name == "lo" {
				continue
			}

			addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
			if err != nil {
				log.WithError(err).WithField("iface", attrs.Name).Warn("could not list addresses")
				continue
			}
			if len(addrs) == 0 {
				continue
			}

			iface := NetInterface{
				IfName:     attrs.Name,
				MACAddress: attrs.HardwareAddr.String(),
				BridgeName: bridgeName(attrs.Name),
				TapName:    tapName(attrs.Name),
			}

			for _, addr := range addrs {
				if addr.IP.To4() != nil {
					iface.IPv4Addresses = append(iface.IPv4Addresses, addr.IPNet.String())
				} else {
					iface.IPv6Addresses = append(iface.IPv6Addresses, addr.IPNet.String())
				}
			}

			cfg.Interfaces = append(cfg.Interfaces, iface)
		}

		if gw, err := defaultGateway(); err == nil {
			cfg.Gateway = gw
		} else {
			log.WithError(err).Debug("no default gateway found, guest will be isolated")
		}

		return nil
	}

	if nsPath == "" {
		if err := discover(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	targetNS, err := ns.GetNS(nsPath)
	if err != nil {
		return nil, &IOError{Op: fmt.Sprintf("open netns %s", nsPath), Err: err}
	}
	defer targetNS.Close()

	if err := targetNS.Do(func(_ ns.NetNS) error { return discover() }); err != nil {
		return nil, err
	}

	return cfg, nil
}

// tapName and bridgeName derive the deterministic device names used for a
// given guest interface: c<ifname> for the tap, b<ifname> for the bridge.
func tapName(ifName string) string    { return "c" + ifName }
func bridgeName(ifName string) string { return "b" + ifName }

// defaultGateway returns the gateway of the first default IPv4 route found,
// or an error if none exists.
func defaultGateway() (string, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", err
	}
	for _, r := range routes {
		if r.Dst == nil && r.Gw != nil {
			return r.Gw.String(), nil
		}
	}
	return "", fmt.Errorf("no default route found")
}

// PlumbInterface creates the veth<->bridge<->tap chain for iface,
// overrides the veth's in-namespace MAC to derivedMAC to avoid colliding
// with the tap side, and brings every link up. It is the Go-idiom
// equivalent of bridging a network pair before handing the tap over to the
// hypervisor.
func PlumbInterface(iface *NetInterface, derivedMAC net.HardwareAddr) error {
	netHandle, err := netlink.NewHandle()
	if err != nil {
		return &IOError{Op: "open netlink handle", Err: err}
	}
	defer netHandle.Close()

	vethLink, err := netlink.LinkByName(iface.IfName)
	if err != nil {
		return &IOError{Op: fmt.Sprintf("find veth %s", iface.IfName), Err: err}
	}

	tapLink := &netlink.Tuntap{
		LinkAttrs: netlink.LinkAttrs{Name: iface.TapName},
		Mode:      netlink.TUNTAP_MODE_TAP,
	}
	if err := netHandle.LinkAdd(tapLink); err != nil {
		return &IOError{Op: fmt.Sprintf("create tap %s", iface.TapName), Err: err}
	}

	mcastSnoop := false
	bridgeLink := &netlink.Bridge{
		LinkAttrs:         netlink.LinkAttrs{Name: iface.BridgeName},
		MulticastSnooping: &mcastSnoop,
	}
	if err := netHandle.LinkAdd(bridgeLink); err != nil {
		return &IOError{Op: fmt.Sprintf("create bridge %s", iface.BridgeName), Err: err}
	}

	if derivedMAC != nil {
		if err := netHandle.LinkSetHardwareAddr(vethLink, derivedMAC); err != nil {
			return &IOError{Op: fmt.Sprintf("set veth %s MAC", iface.IfName), Err: err}
		}
	}

	for _, link := range []netlink.Link{tapLink, vethLink} {
		if err := netHandle.LinkSetMaster(link, bridgeLink); err != nil {
			return &IOError{Op: fmt.Sprintf("attach %s to bridge %s", link.Attrs().Name, iface.BridgeName), Err: err}
		}
	}

	for _, link := range []netlink.Link{tapLink, vethLink, bridgeLink} {
		if err := netHandle.LinkSetUp(link); err != nil {
			return &IOError{Op: fmt.Sprintf("bring up %s", link.Attrs().Name), Err: err}
		}
	}

	return nil
}

// TeardownInterface reverses PlumbInterface, best-effort.
func TeardownInterface(iface *NetInterface) error {
	netHandle, err := netlink.NewHandle()
	if err != nil {
		return &IOError{Op: "open netlink handle", Err: err}
	}
	defer netHandle.Close()

	for _, name := range []string{iface.TapName, iface.BridgeName} {
		link, err := netlink.LinkByName(name)
		if err != nil {
			continue
		}
		netHandle.LinkSetDown(link)
		netHandle.LinkDel(link)
	}

	return nil
}

// EnableForwardingAndNAT flips net.ipv4.ip_forward and installs a
// MASQUERADE rule so guests reachable only via bridgeName can still reach
// the host's default route, mirroring the original runtime's direct
// iptables/sysctl pokes.
func EnableForwardingAndNAT(bridgeCIDR, bridgeName string) error {
	if err := sysctl.Set("net.ipv4.ip_forward", "1"); err != nil {
		return &IOError{Op: "enable ip_forward", Err: err}
	}

	ipt, err := iptables.New()
	if err != nil {
		return &IOError{Op: "open iptables handle", Err: err}
	}

	if err := ipt.AppendUnique("nat", "POSTROUTING", "-s", bridgeCIDR, "!", "-o", bridgeName, "-j", "MASQUERADE"); err != nil {
		return &IOError{Op: "install NAT rule", Err: err}
	}

	return nil
}

// SerializeNetworkParams encodes cfg as KEY=VALUE lines. CreateContainer
// stores the result directly as the @KERNEL_NET_PARAMS@ substitution value
// in the parent process; no pipe to the hypervisor child is involved.
func SerializeNetworkParams(cfg *NetworkConfig) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("GATEWAY=%s", cfg.Gateway))
	for i, iface := range cfg.Interfaces {
		lines = append(lines, fmt.Sprintf("IFACE_%d_NAME=%s", i, iface.IfName))
		lines = append(lines, fmt.Sprintf("IFACE_%d_MAC=%s", i, iface.MACAddress))
		lines = append(lines, fmt.Sprintf("IFACE_%d_TAP=%s", i, iface.TapName))
		lines = append(lines, fmt.Sprintf("IFACE_%d_IPV4=%s", i, strings.Join(iface.IPv4Addresses, ",")))
	}
	return strings.Join(lines, "\n")
}
