package server

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/sirupsen/logrus"
)

// BindAddress picks the listen address: an explicit ip wins, otherwise the
// first IPv4 address of iface, otherwise every interface.
func BindAddress(iface, ip string, port int) (string, error) {
	host := "0.0.0.0"
	switch {
	case ip != "":
		if net.ParseIP(ip) == nil {
			return "", fmt.Errorf("%w: %q is not an IP address", core.ErrInvalidConfig, ip)
		}
		host = ip
	case iface != "":
		addr, err := interfaceIPv4(iface)
		if err != nil {
			return "", err
		}
		host = addr
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func interfaceIPv4(name string) (string, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return "", fmt.Errorf("%w: interface %s: %v", core.ErrInvalidConfig, name, err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return "", fmt.Errorf("%w: interface %s: %v", core.ErrInvalidConfig, name, err)
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("%w: interface %s has no IPv4 address", core.ErrInvalidConfig, name)
}

// CheckPrivileges warns when the environment is unlikely to allow binding
// port. It never fails.
func CheckPrivileges(port int, log logrus.FieldLogger) {
	if runtime.GOOS != "linux" {
		log.Warnf("DNS hijacking is only tested on Linux (running on %s)", runtime.GOOS)
	}
	if port < 1024 && os.Geteuid() != 0 {
		log.Warnf("Binding port %d usually requires root privileges", port)
	}
}
