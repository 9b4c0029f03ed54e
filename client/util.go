package client

import (
	"strings"
)

func httpURL(addr, path string) string {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/") + path
}

func splitAddresses(addresses string) []string {
	var ret []string
	for _, addr := range strings.Split(addresses, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			ret = append(ret, addr)
		}
	}
	return ret
}
