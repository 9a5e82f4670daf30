package subsystem

// cgroup v2 下所有控制器共用一个目录
type ResourceConfig struct {
	//0 表示不限制
	MemoryLimitMB int
}

type Subsystem interface {
	Name() string
	Set(cgroupPath string, res *ResourceConfig) error
	Apply(cgroupPath string, pid int, res *ResourceConfig) error
	Remove(cgroupPath string) error
}

var (
	SubsystemIns = []Subsystem{
		&MemorySubSystem{},
	}
)
