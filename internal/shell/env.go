package shell

import (
	"maps"
	"slices"
	"strings"
)

// DefaultEnv is applied on top of the parent environment before the
// project's own variables. It keeps interpreters from choking on UTF-8
// output when stdout is a pipe.
var DefaultEnv = map[string]string{
	"PYTHONIOENCODING": "utf-8",
	"PYTHONUTF8":       "1",
	"LANG":             "en_US.UTF-8",
	"LC_ALL":           "en_US.UTF-8",
}

// BuildEnv returns parent overlaid with DefaultEnv, then with overlay.
// Variables already present in parent keep their position; new ones are
// appended in sorted order so the result is deterministic.
func BuildEnv(parent []string, overlay map[string]string) []string {
	env := make([]string, 0, len(parent)+len(DefaultEnv)+len(overlay))
	index := make(map[string]int, len(parent))

	set := func(key, value string) {
		kv := key + "=" + value
		if i, ok := index[key]; ok {
			env[i] = kv
			return
		}
		index[key] = len(env)
		env = append(env, kv)
	}

	for _, kv := range parent {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		set(key, value)
	}
	for _, key := range slices.Sorted(maps.Keys(DefaultEnv)) {
		set(key, DefaultEnv[key])
	}
	for _, key := range slices.Sorted(maps.Keys(overlay)) {
		set(key, overlay[key])
	}
	return env
}
