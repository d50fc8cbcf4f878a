// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package cryptoutil provides the handful of cryptographic primitives the
// DP-3T designs are built from: SHA-256 digests, HMAC-SHA-256, an AES-CTR
// keystream generator used as a deterministic stream cipher, secure random
// byte generation, and a cryptographically secure shuffle. None of these
// functions retain state across calls; the only shared resource is the
// process-wide CSPRNG (see rand.go).
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/DP-3T/reference-implementation/dp3terr"
)

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HMACSHA256 returns HMAC-SHA-256(key, msg).
func HMACSHA256(key, msg []byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// AESCTRKeystream returns nbytes of AES-CTR keystream produced by
// "encrypting" an all-zero buffer under key with an initial counter of zero.
// key may be 16, 24, or 32 bytes; crypto/aes already dispatches on length
// (AES-128/192/256), which is load-bearing here: the low-cost design's
// stream key is a 32-byte HMAC-SHA-256 output fed to AES as-is (AES-256),
// matching the Python reference implementation's behavior bit-for-bit. Do
// not truncate the key to 16 bytes to force AES-128 — that produces
// different EphIDs and breaks the published test vectors.
func AESCTRKeystream(key []byte, nbytes int) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: aes.NewCipher: %v", dp3terr.ErrCryptoUnavailable, err)
	}

	var iv [aes.BlockSize]byte // counter = 0
	stream := cipher.NewCTR(block, iv[:])

	out := make([]byte, nbytes)
	stream.XORKeyStream(out, out)
	return out, nil
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(currentRand(), buf); err != nil {
		return nil, fmt.Errorf("%w: %v", dp3terr.ErrCryptoUnavailable, err)
	}
	return buf, nil
}

// SecureShuffle performs an in-place, cryptographically secure Fisher-Yates
// shuffle of items. It must be the only shuffle primitive used anywhere in
// this module: a non-cryptographic shuffle of observed EphIDs would leak
// receive order to an observer of the underlying storage.
func SecureShuffle[T any](items []T) error {
	for i := len(items) - 1; i > 0; i-- {
		j, err := secureIntn(i + 1)
		if err != nil {
			return err
		}
		items[i], items[j] = items[j], items[i]
	}
	return nil
}

// secureIntn returns a uniformly distributed integer in [0, n) read from the
// process CSPRNG, using rejection sampling to avoid modulo bias.
func secureIntn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("dp3t: secureIntn called with non-positive bound %d", n)
	}
	if n == 1 {
		return 0, nil
	}

	max := uint64(n)
	// Largest multiple of max that fits in 64 bits; values drawn at or above
	// it are rejected and redrawn to keep the distribution uniform.
	limit := (^uint64(0) / max) * max

	var buf [8]byte
	for {
		if _, err := io.ReadFull(currentRand(), buf[:]); err != nil {
			return 0, fmt.Errorf("%w: %v", dp3terr.ErrCryptoUnavailable, err)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return int(v % max), nil
		}
	}
}
