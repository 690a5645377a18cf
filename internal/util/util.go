// Package util holds small shared helpers.
package util

import (
	"fmt"
	"os"
)

// EnvOrDefault returns the environment variable's value, or def when
// unset or empty.
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// FormatAmount renders an amount with thousands separators, Mexican
// style: 950000 -> "950,000".
func FormatAmount(v int64) string {
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
