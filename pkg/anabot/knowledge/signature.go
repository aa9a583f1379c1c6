package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Signature computes a stable digest over the sorted set of
// (path, mtime, size) for every eligible file under the knowledge
// directory. It is a cheap change detector: file contents are never read.
func (l *Loader) Signature() (string, error) {
	files, err := l.eligibleFiles()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s|%d|%d\n", f.path, f.mtime, f.size)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
