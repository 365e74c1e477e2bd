package service

import (
	"crypto/rand"
	"fmt"
)

const (
	externalIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	externalIDLength   = 20
	// largest multiple of len(alphabet) that fits in a byte; bytes above it are rejected
	externalIDByteLimit = 256 - 256%len(externalIDAlphabet)
)

// NewExternalID returns a 20 character public identifier drawn uniformly from [A-Za-z0-9].
func NewExternalID() (string, error) {
	out := make([]byte, 0, externalIDLength)
	buf := make([]byte, externalIDLength*2)
	for len(out) < externalIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= externalIDByteLimit {
				continue
			}
			out = append(out, externalIDAlphabet[int(b)%len(externalIDAlphabet)])
			if len(out) == externalIDLength {
				break
			}
		}
	}
	return string(out), nil
}
