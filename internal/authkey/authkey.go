// Package authkey implements the 256-byte local authentication key and
// the legacy AES-IGE encryption layer keyed by it.
//
// Two derivation regimes exist. The modern one (key_data files) runs
// PBKDF2-HMAC-SHA512 over a SHA-512 preimage of salt||passcode||salt.
// The legacy one (settings files) runs PBKDF2-HMAC-SHA1 directly over
// the passcode. Both collapse to a handful of iterations when the
// passcode is empty; that shortcut is part of the format and must be
// preserved.
package authkey

import (
	"crypto/aes"
	"crypto/sha1"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/gotd/ige"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Size is the auth key length in bytes.
	Size = 256

	// SaltSize is the required salt length for both derivation regimes.
	SaltSize = 32

	// MsgKeySize is the length of the message key prefix of an encrypted
	// block.
	MsgKeySize = 16

	strongIterations      = 100_000
	legacyIterations      = 4000
	legacyNoPwdIterations = 4
)

var (
	// ErrBadSaltSize is returned when a salt is not exactly SaltSize
	// bytes.
	ErrBadSaltSize = errors.New("bad salt size")

	// ErrBadKeySize is returned when raw key material is not exactly
	// Size bytes.
	ErrBadKeySize = errors.New("bad auth key size")
)

// Key is a 256-byte local authentication key. It is immutable after
// derivation and safe to share across any number of readers.
type Key struct {
	data [Size]byte
}

// Blank returns the all-zero neutral key.
func Blank() *Key {
	return &Key{}
}

// IsZero reports whether the key is all zeros.
func (k *Key) IsZero() bool {
	return *k == Key{}
}

// CreateLocal derives a key from a passcode with the modern regime:
// PBKDF2-HMAC-SHA512 over SHA512(salt || passcode || salt), 100000
// iterations, or a single iteration for an empty passcode.
func CreateLocal(passcode, salt []byte) (*Key, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrBadSaltSize, len(salt), SaltSize)
	}
	h := sha512.New()
	h.Write(salt)
	h.Write(passcode)
	h.Write(salt)
	preimage := h.Sum(nil)

	iterations := strongIterations
	if len(passcode) == 0 {
		iterations = 1
	}

	k := &Key{}
	copy(k.data[:], pbkdf2.Key(preimage, salt, iterations, Size, sha512.New))
	return k, nil
}

// CreateLegacyLocal derives a key from a passcode with the legacy regime:
// PBKDF2-HMAC-SHA1 over the passcode itself, 4000 iterations, or 4 for
// an empty passcode.
func CreateLegacyLocal(passcode, salt []byte) (*Key, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrBadSaltSize, len(salt), SaltSize)
	}
	iterations := legacyIterations
	if len(passcode) == 0 {
		iterations = legacyNoPwdIterations
	}

	k := &Key{}
	copy(k.data[:], pbkdf2.Key(passcode, salt, iterations, Size, sha1.New))
	return k, nil
}

// FromBytes constructs a key from exactly Size bytes of raw key material
// (the decrypted payload of a key_data file).
func FromBytes(b []byte) (*Key, error) {
	if len(b) != Size {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrBadKeySize, len(b), Size)
	}
	k := &Key{}
	copy(k.data[:], b)
	return k, nil
}

// prepareAES derives the AES-256-IGE key and IV for a message key using
// the legacy SHA-1 schedule. The receive direction slices the auth key at
// offset 8, the send direction at offset 0.
func (k *Key) prepareAES(msgKey [MsgKeySize]byte, send bool) (aesKey, aesIV [32]byte) {
	offset := 8
	if send {
		offset = 0
	}
	data := k.data[offset : offset+128]

	a := sha1Parts(msgKey[:], data[0:32])
	b := sha1Parts(data[32:48], msgKey[:], data[48:64])
	c := sha1Parts(data[64:96], msgKey[:])
	d := sha1Parts(msgKey[:], data[96:128])

	copy(aesKey[0:8], a[0:8])
	copy(aesKey[8:20], b[8:20])
	copy(aesKey[20:32], c[4:16])

	copy(aesIV[0:12], a[8:20])
	copy(aesIV[12:20], b[0:8])
	copy(aesIV[20:24], c[16:20])
	copy(aesIV[24:32], d[0:8])
	return aesKey, aesIV
}

func sha1Parts(parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// DecryptLocal decrypts src with AES-256-IGE using the receive-direction
// schedule for msgKey. len(src) must be a multiple of the AES block size;
// callers validate sizes before calling.
func DecryptLocal(src []byte, key *Key, msgKey [MsgKeySize]byte) ([]byte, error) {
	aesKey, aesIV := key.prepareAES(msgKey, false)
	block, err := aes.NewCipher(aesKey[:])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	out := make([]byte, len(src))
	ige.NewIGEDecrypter(block, aesIV[:]).CryptBlocks(out, src)
	return out, nil
}

// EncryptLocal is the inverse of DecryptLocal. The reader never writes
// files; this exists for round-trip verification of the cipher layer.
func EncryptLocal(src []byte, key *Key, msgKey [MsgKeySize]byte) ([]byte, error) {
	aesKey, aesIV := key.prepareAES(msgKey, false)
	block, err := aes.NewCipher(aesKey[:])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	out := make([]byte, len(src))
	ige.NewIGEEncrypter(block, aesIV[:]).CryptBlocks(out, src)
	return out, nil
}
