package service

import "strings"

// DisableSet 是启动时读取的原始禁用字符串。
//
// 按子串匹配整个字符串而不是按词查找：禁用 "planner_viz" 时 "planner" 也会被禁用。
// 现有部署依赖这一行为，不要修改
type DisableSet string

func (s DisableSet) Contains(name string) bool {
	if s == "" || name == "" {
		return false
	}
	return strings.Contains(string(s), name)
}

func ShouldDisable(d Descriptor, disabled DisableSet) bool {
	return disabled.Contains(d.Name)
}
