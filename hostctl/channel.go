// Package hostctl 通过宿主机容器引擎的管理接口检查连通性，
// 并查询 bootvisor 所在容器的 cgroup。
package hostctl

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
	"github.com/tidwall/gjson"
)

const (
	DefaultAddress = "unix:///var/run/docker.sock"
	defaultTimeout = 3 * time.Second
)

// Channel 是绑定到单个地址的 Docker Engine API 客户端，
// 地址形如 unix://<socket> 或 tcp://<host>:<port>
type Channel struct {
	Address string
	// 为空时使用主机名，容器引擎会把它设为短容器 id
	ContainerID string
	// 使用本地回环 tcp 地址时，每次请求前先检查 lo
	LinkCheck func() error

	client  *http.Client
	baseURL string
}

func NewChannel(address string) (*Channel, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("解析控制通道地址 %s 失败: %w", address, err)
	}

	c := &Channel{Address: address}
	transport := &http.Transport{}
	switch u.Scheme {
	case "unix":
		socket := u.Path
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		}
		c.baseURL = "http://engine"
	case "tcp":
		c.baseURL = "http://" + u.Host
		if isLoopback(u.Hostname()) {
			c.LinkCheck = LoopbackUp
		}
	default:
		return nil, fmt.Errorf("不支持的控制通道协议 %q", u.Scheme)
	}
	c.client = &http.Client{Transport: transport, Timeout: defaultTimeout}
	return c, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *Channel) get(ctx context.Context, p string) ([]byte, error) {
	if c.LinkCheck != nil {
		if err := c.LinkCheck(); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+p, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 %s 失败: %w", p, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("读取 %s 响应失败: %w", p, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("请求 %s 返回 %d: %s", p, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Channel) Ping(ctx context.Context) error {
	body, err := c.get(ctx, "/_ping")
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) != "OK" {
		return fmt.Errorf("控制通道 %s 响应异常: %q", c.Address, body)
	}
	return nil
}

// ContainerCgroup 返回本容器相对宿主机 cgroup2 挂载点的路径，
// 例如 /system.slice/docker-<id>.scope
func (c *Channel) ContainerCgroup(ctx context.Context) (string, error) {
	info, err := c.get(ctx, "/info")
	if err != nil {
		return "", err
	}
	driver := gjson.GetBytes(info, "CgroupDriver").String()
	if v := gjson.GetBytes(info, "CgroupVersion").String(); v != "" && v != "2" {
		return "", fmt.Errorf("宿主机 cgroup 版本为 %s，需要 v2", v)
	}

	id := c.ContainerID
	if id == "" {
		if id, err = os.Hostname(); err != nil {
			return "", fmt.Errorf("获取容器 ID 失败: %w", err)
		}
	}
	inspect, err := c.get(ctx, "/containers/"+url.PathEscape(id)+"/json")
	if err != nil {
		return "", err
	}
	fullID := gjson.GetBytes(inspect, "Id").String()
	if fullID == "" {
		return "", fmt.Errorf("容器 %s 的 inspect 结果缺少 Id", id)
	}
	parent := gjson.GetBytes(inspect, "HostConfig.CgroupParent").String()
	log.Debugf("容器 %s cgroup driver=%s parent=%q", fullID, driver, parent)

	switch driver {
	case "systemd":
		if parent == "" {
			parent = "system.slice"
		}
		return path.Join("/", parent, "docker-"+fullID+".scope"), nil
	case "cgroupfs", "":
		if parent == "" {
			parent = "/docker"
		}
		return path.Join("/", parent, fullID), nil
	default:
		return "", fmt.Errorf("未知的 cgroup driver %q", driver)
	}
}
