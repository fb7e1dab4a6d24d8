package fsadapter

import (
	"crypto/sha512"
	"encoding/hex"
	"io"
	"os"
)

// HashFile computes the SHA-512 hex digest of a resolved regular file
// (the H opcode, spec §4.5).
func HashFile(realPath string) (string, error) {
	f, err := os.Open(realPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
