// Package netinfo discovers the origin network identity (public IP, local
// IP, MAC address) the broker requires in its fingerprint headers. Every
// lookup degrades to a safe fallback; the bridge must start even when
// offline.
package netinfo

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	fallbackIP  = "127.0.0.1"
	fallbackMAC = "00:00:00:00:00:00"
)

// PublicIP resolves the originating public IP via api.ipify.org.
func PublicIP() string {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("https://api.ipify.org")
	if err != nil {
		return fallbackIP
	}
	defer resp.Body.Close()

	ip, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		return fallbackIP
	}
	out := strings.TrimSpace(string(ip))
	if out == "" {
		return fallbackIP
	}
	return out
}

// LocalIP finds the first non-loopback IPv4 address.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return fallbackIP
	}
	for _, address := range addrs {
		if ipNet, ok := address.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				return ipNet.IP.String()
			}
		}
	}
	return fallbackIP
}

// MACAddress returns the hardware address of the first interface that has
// one.
func MACAddress() string {
	ifs, err := net.Interfaces()
	if err != nil {
		return fallbackMAC
	}
	for _, ifc := range ifs {
		if len(ifc.HardwareAddr) > 0 {
			return ifc.HardwareAddr.String()
		}
	}
	return fallbackMAC
}
