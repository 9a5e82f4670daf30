package session

import (
	"sort"
	"strings"
)

//只传递指定前缀的环境变量，不复制整个环境
func captureEnv(environ []string, prefixes []string) map[string]string {
	env := map[string]string{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(key, p) {
				env[key] = value
				break
			}
		}
	}
	return env
}

func exportLine(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("export")
	for _, k := range keys {
		b.WriteString(" " + k + "=" + shellQuote(env[k]))
	}
	return b.String()
}
