// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package server

import "net"

const (
	probeAddr    = "8.8.8.8:80"
	fallbackHost = "127.0.0.1"
)

// ResolveAdvertiseHost returns the address devices should dial. Any value
// other than "" or "auto" is used as is. Otherwise the local address of an
// outbound UDP socket is used; no packet is sent.
func ResolveAdvertiseHost(setting string) string {
	if setting != "" && setting != "auto" {
		return setting
	}
	c, err := net.Dial("udp", probeAddr)
	if err != nil {
		return fallbackHost
	}
	defer c.Close()
	if ua, ok := c.LocalAddr().(*net.UDPAddr); ok && !ua.IP.IsUnspecified() {
		return ua.IP.String()
	}
	return fallbackHost
}
