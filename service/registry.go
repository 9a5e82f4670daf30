package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// ReservedName 是启动器自身所在的子 cgroup，不能用作服务名
const ReservedName = "init"

// Registry 是有序的服务表，创建时校验一次，之后不再修改
type Registry struct {
	services []Descriptor
}

func NewRegistry(services []Descriptor) (*Registry, error) {
	seen := make(map[string]bool, len(services))
	for i, d := range services {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("第 %d 个服务缺少名称", i)
		}
		if strings.ContainsAny(d.Name, " \t:./") {
			//名称同时作为 tmux 会话名和 cgroup 目录名
			return nil, fmt.Errorf("服务名称 %q 含有非法字符", d.Name)
		}
		if d.Name == ReservedName {
			return nil, fmt.Errorf("服务名称 %q 已被保留", d.Name)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("服务名称 %q 重复", d.Name)
		}
		seen[d.Name] = true

		if d.MemoryLimitMB < 0 {
			return nil, fmt.Errorf("服务 %s 内存上限 %d 不能为负数", d.Name, d.MemoryLimitMB)
		}
		if d.Wave != WavePriority && d.Wave != WaveNormal {
			return nil, fmt.Errorf("服务 %s 启动批次 %v 无效", d.Name, d.Wave)
		}
		argv, err := shlex.Split(d.Command)
		if err != nil {
			return nil, fmt.Errorf("服务 %s 命令解析失败: %w", d.Name, err)
		}
		if len(argv) == 0 {
			return nil, fmt.Errorf("服务 %s 缺少启动命令", d.Name)
		}
	}

	table := make([]Descriptor, len(services))
	copy(table, services)
	return &Registry{services: table}, nil
}

type registryFile struct {
	Services []Descriptor `yaml:"services"`
}

//从 yaml 文件加载服务表，替换内置表
func LoadFile(path string) (*Registry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取服务表 %s 失败: %w", path, err)
	}
	var f registryFile
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("解析服务表 %s 失败: %w", path, err)
	}
	if len(f.Services) == 0 {
		return nil, fmt.Errorf("服务表 %s 为空", path)
	}
	return NewRegistry(f.Services)
}

// ServicesForWave 按声明顺序返回某一批次的服务
func (r *Registry) ServicesForWave(w Wave) []Descriptor {
	var out []Descriptor
	for _, d := range r.services {
		if d.Wave == w {
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.services))
	copy(out, r.services)
	return out
}

func (r *Registry) Lookup(name string) (Descriptor, bool) {
	for _, d := range r.services {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
