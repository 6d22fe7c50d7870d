package domain

import (
	"crypto/rand"
	"encoding/hex"
)

// NewPublicID returns an opaque shareable token for a job. Distinct from the
// storage primary key so database ids never leak through download links.
func NewPublicID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// rand.Read on supported platforms does not fail; crash loudly if it does.
		panic("domain: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
