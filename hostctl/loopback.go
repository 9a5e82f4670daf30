package hostctl

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// LoopbackUp 在 lo 不存在或未启用时返回错误
func LoopbackUp() error {
	link, err := netlink.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("查找 lo 网卡失败: %w", err)
	}
	if link.Attrs().Flags&net.FlagUp == 0 {
		return fmt.Errorf("lo 网卡未启用")
	}
	return nil
}
