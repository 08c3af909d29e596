package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewInstanceID returns "<name>-<8 hex chars>", unique per process start.
func NewInstanceID(name string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if name == "" {
		return suffix
	}
	return name + "-" + suffix
}
