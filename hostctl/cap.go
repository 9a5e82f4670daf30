package hostctl

import (
	"fmt"
	"strings"

	"github.com/syndtr/gocapability/capability"
)

var capabilityMap map[string]capability.Cap

func init() {
	capabilityMap = make(map[string]capability.Cap, capability.CAP_LAST_CAP+1)
	for _, c := range capability.List() {
		if c > capability.CAP_LAST_CAP {
			continue
		}
		capabilityMap["CAP_"+strings.ToUpper(c.String())] = c
	}
}

// MissingCapabilities 返回当前进程有效权限集中缺少的权限名
func MissingCapabilities(caps ...string) ([]string, error) {
	pid, err := capability.NewPid2(0)
	if err != nil {
		return nil, err
	}
	if err := pid.Load(); err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range caps {
		c, ok := capabilityMap[name]
		if !ok {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		if !pid.Get(capability.EFFECTIVE, c) {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
