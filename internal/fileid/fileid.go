// Package fileid derives stable document ids for watched files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file-"

// ForPath returns the document id for path. Relative paths are resolved
// against the working directory, so every spelling of the same file maps to
// one id.
func ForPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(abs))
	return prefix + hex.EncodeToString(sum[:12]), nil
}
