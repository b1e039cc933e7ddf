// Package hashutil provides the content hashing used for document and
// chunk identity.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the lowercase hex SHA-256 of the given text.
func Sum(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ContentHash returns the identity hash of a document: SHA-256 over the
// title immediately followed by the content.
func ContentHash(title, content string) string {
	return Sum(title + content)
}
