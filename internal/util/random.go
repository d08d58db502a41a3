package util

import (
	"crypto/rand"
	"math/big"
)

const alphanumerics = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString generates a cryptographically secure alphanumeric string of
// length n.
func RandomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphanumerics))))
		if err != nil {
			panic(err)
		}
		b[i] = alphanumerics[idx.Int64()]
	}
	return string(b)
}
