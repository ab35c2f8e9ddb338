package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaterialHash returns a SHA256 hash of the normalized study material for
// change detection
func MaterialHash(material string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(material)))
	return hex.EncodeToString(h[:])
}

// DeckID generates a deterministic UUID for a deck built from material
func DeckID(material string, count int) string {
	data := fmt.Sprintf("%s#%d", MaterialHash(material), count)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(data)).String()
}
