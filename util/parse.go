package util

import "strings"

// SplitAddrs splits a comma-separated address list, dropping blanks.
func SplitAddrs(str string) []string {
	parts := strings.Split(str, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
