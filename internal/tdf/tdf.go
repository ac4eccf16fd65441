// Package tdf reads the TDF$ file envelope and the encrypted block layer
// nested inside it.
//
// Envelope layout (header fields little-endian, unlike the value stream
// inside):
//
//	offset 0:   'T','D','F','$'
//	offset 4:   version : int32 little-endian
//	offset 8:   body    : N bytes
//	offset 8+N: trailer : 16 bytes = MD5(body || i32le(N) || i32le(version) || magic)
package tdf

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/postalsys/tdata-reader/internal/authkey"
	"github.com/postalsys/tdata-reader/internal/stream"
)

var magic = [4]byte{'T', 'D', 'F', '$'}

const (
	trailerSize = md5.Size
	headerSize  = len(magic) + 4
)

var (
	// ErrBadMagic is returned when a file does not start with TDF$.
	ErrBadMagic = errors.New("bad magic")

	// ErrBadSignature is returned when the MD5 trailer does not match the
	// body.
	ErrBadSignature = errors.New("signature mismatch")

	// ErrLegacyFallback is returned when the modern single-file variant
	// is missing. Older installations kept numbered fallback copies; the
	// reader deliberately does not walk them.
	ErrLegacyFallback = errors.New("unsupported: modern files only")

	// ErrBadEncryptedSize is returned when an encrypted block is not
	// larger than one AES block or not block-aligned.
	ErrBadEncryptedSize = errors.New("bad encrypted part size")

	// ErrBadDecryptKey is returned when the SHA-1 prefix of the decrypted
	// plaintext does not match the outer key. This is also how a wrong
	// passcode surfaces.
	ErrBadDecryptKey = errors.New("bad decrypt key")

	// ErrBadDeclaredLen is returned when the declared plaintext length is
	// outside the allowed window.
	ErrBadDeclaredLen = errors.New("bad declared length")
)

// ReadDescriptor is an opened, verified envelope. The body is exposed as
// a value stream; the version is the little-endian header field.
type ReadDescriptor struct {
	version int32
	data    *stream.Reader
}

// Open resolves name under basePath to the modern single-file variant
// (trailing 's'), verifies the envelope and returns a descriptor over its
// body.
func Open(name, basePath string) (*ReadDescriptor, error) {
	path := filepath.Join(basePath, name) + "s"

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLegacyFallback, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	d, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return d, nil
}

// Parse verifies an envelope held in memory.
func Parse(raw []byte) (*ReadDescriptor, error) {
	if len(raw) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for an envelope", ErrBadSignature, len(raw))
	}
	if [4]byte(raw[:4]) != magic {
		return nil, fmt.Errorf("%w: % x", ErrBadMagic, raw[:4])
	}
	version := int32(binary.LittleEndian.Uint32(raw[4:8]))

	body := raw[headerSize : len(raw)-trailerSize]
	trailer := raw[len(raw)-trailerSize:]

	h := md5.New()
	h.Write(body)
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], uint32(len(body)))
	h.Write(le[:])
	binary.LittleEndian.PutUint32(le[:], uint32(version))
	h.Write(le[:])
	h.Write(magic[:])

	if subtle.ConstantTimeCompare(h.Sum(nil), trailer) != 1 {
		return nil, ErrBadSignature
	}

	return &ReadDescriptor{version: version, data: stream.New(body)}, nil
}

// Version returns the envelope version field.
func (d *ReadDescriptor) Version() int32 { return d.version }

// Stream returns the body as a value stream.
func (d *ReadDescriptor) Stream() *stream.Reader { return d.data }

// DecryptLocal peels an encrypted block: the leading 16 bytes are the
// outer key, the rest is AES-IGE ciphertext. The SHA-1 prefix of the
// plaintext must equal the outer key, and the first four plaintext bytes
// declare (little-endian) how much of the plaintext is real; the window
// between declared length and block padding is at most 31 bytes.
func DecryptLocal(encrypted []byte, key *authkey.Key) (*stream.Reader, error) {
	if len(encrypted) <= authkey.MsgKeySize || len(encrypted)%16 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadEncryptedSize, len(encrypted))
	}

	msgKey := [authkey.MsgKeySize]byte(encrypted[:authkey.MsgKeySize])
	plain, err := authkey.DecryptLocal(encrypted[authkey.MsgKeySize:], key, msgKey)
	if err != nil {
		return nil, err
	}

	sum := sha1.Sum(plain)
	if subtle.ConstantTimeCompare(sum[:authkey.MsgKeySize], msgKey[:]) != 1 {
		return nil, ErrBadDecryptKey
	}

	const lenSize = 4
	declared := int(binary.LittleEndian.Uint32(plain[:lenSize]))
	if declared < lenSize || declared > len(plain) || declared <= len(plain)-32 {
		return nil, fmt.Errorf("%w: %d of %d plaintext bytes", ErrBadDeclaredLen, declared, len(plain))
	}

	return stream.New(plain[lenSize:declared]), nil
}
