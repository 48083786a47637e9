package utils

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// NewSlug returns a 40 hex-character identifier for uploads and files.
// The hash input mixes a high-resolution timestamp, a process-unique nonce
// and random bits, so the slug leaks neither of them. Collisions are not
// checked against storage; the entropy makes them implausible.
func NewSlug() string {
	var buf [8 + 16 + 8]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixNano()))
	nonce := uuid.New()
	copy(buf[8:24], nonce[:])
	_, _ = rand.Read(buf[24:])

	sum := sha1.Sum(buf[:])
	return hex.EncodeToString(sum[:])
}
