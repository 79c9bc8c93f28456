package utils

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GetToken returns a random token.
func GetToken() string {
	return uuid.NewString()
}

// StoredName returns a collision-free name that keeps the original extension.
func StoredName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if len(ext) > 16 || strings.ContainsAny(ext, "/\\") {
		ext = ""
	}
	return uuid.NewString() + ext
}
