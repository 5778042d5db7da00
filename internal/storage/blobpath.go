package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ObjectPath builds a content-addressed blob path of the form
// prefix/ab/abcdef....ext so repeated harvests of identical content land on
// the same object.
func ObjectPath(prefix string, data []byte, ext string) string {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	ext = strings.TrimPrefix(ext, ".")
	name := digest
	if ext != "" {
		name = digest + "." + ext
	}
	if prefix == "" {
		return fmt.Sprintf("%s/%s", digest[:2], name)
	}
	return fmt.Sprintf("%s/%s/%s", strings.Trim(prefix, "/"), digest[:2], name)
}
