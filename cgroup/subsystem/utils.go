package subsystem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
)

const (
	ProcsFile          = "cgroup.procs"
	SubtreeControlFile = "cgroup.subtree_control"
)

//查找 cgroup2 的挂载点
func FindCgroupMountPoint() (string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		log.Errorf("打开 /proc/self/mountinfo 失败 %v", err)
		return "", fmt.Errorf("打开 /proc/self/mountinfo 失败: %w", err)
	}
	defer f.Close()
	return findCgroup2Mount(f)
}

func findCgroup2Mount(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		//36 25 0:31 / /sys/fs/cgroup rw,nosuid - cgroup2 cgroup2 rw
		txt := scanner.Text()
		sep := strings.Index(txt, " - ")
		if sep < 0 {
			continue
		}
		fields := strings.Fields(txt[:sep])
		post := strings.Fields(txt[sep+3:])
		if len(fields) < 5 || len(post) < 1 {
			continue
		}
		if post[0] == "cgroup2" {
			log.Debugf("cgroup2 挂载点 %s", fields[4])
			return fields[4], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("读取 mountinfo 失败: %w", err)
	}
	return "", fmt.Errorf("未找到 cgroup2 挂载点")
}

//读取 /proc/self/cgroup 中 v2 的路径
func SelfCgroup() (string, error) {
	f, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	defer f.Close()
	return parseCgroupFile(f)
}

func parseCgroupFile(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if p := strings.TrimPrefix(scanner.Text(), "0::"); p != scanner.Text() {
			return p, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("/proc/self/cgroup 中没有 cgroup v2 条目")
}

//获取/创建 cgroup 目录
func GetCgroupPath(root string, cgroupPath string, autoCreate bool) (string, error) {
	cgroupAbsolutePath := path.Join(root, cgroupPath)

	if _, err := os.Stat(cgroupAbsolutePath); err != nil {
		//当目录不存时，并且希望自动创建时
		if os.IsNotExist(err) && autoCreate {
			if err := os.Mkdir(cgroupAbsolutePath, 0755); err != nil {
				log.Errorf("创建 cgroup 目录 %s 失败 %v", cgroupAbsolutePath, err)
				return "", fmt.Errorf("创建 cgroup 目录 %s 失败: %w", cgroupAbsolutePath, err)
			}
			log.Debugf("创建 cgroup 目录 %s 成功", cgroupAbsolutePath)
			return cgroupAbsolutePath, nil
		}
		log.Errorf("获取 cgroup 目录 %s 失败 %v", cgroupAbsolutePath, err)
		return "", err
	}
	return cgroupAbsolutePath, nil
}

func ReadProcs(cgroupPath string) ([]int, error) {
	content, err := os.ReadFile(path.Join(cgroupPath, ProcsFile))
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, line := range strings.Fields(string(content)) {
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("%s 中的 pid %q 无效", ProcsFile, line)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

//每次只能写入一个 pid
func WriteProc(cgroupPath string, pid int) error {
	f, err := os.OpenFile(path.Join(cgroupPath, ProcsFile), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	_, err = f.WriteString(strconv.Itoa(pid) + "\n")
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func EnableControllers(cgroupPath string, controllers ...string) error {
	var b strings.Builder
	for i, c := range controllers {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("+" + c)
	}
	return os.WriteFile(path.Join(cgroupPath, SubtreeControlFile), []byte(b.String()), 0644)
}
