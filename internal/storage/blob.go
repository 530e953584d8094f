package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Blob file format (spec.md §6):
//
//	magic(4)="EZR1" || version(u16) || flags(u16) || salt(32) || nonce(12) || ciphertext(N) || tag(16)
//
// flags bit 0 set means the ciphertext/tag fields are present; when clear,
// salt and nonce are zero-filled and the payload following the header is
// the plaintext canonical document untouched.
const (
	blobMagic       = "EZR1"
	blobVersion     = uint16(1)
	flagEncrypted   = uint16(1 << 0)
	saltSize        = 32
	nonceSize       = 12
	pbkdf2Iterations = 100_000
	keySize         = 32 // AES-256
)

var (
	// ErrBadMagic is returned when a blob's header does not start with EZR1.
	ErrBadMagic = errors.New("storage: blob has invalid magic header")
	// ErrUnsupportedVersion is returned for a blob version this build can't read.
	ErrUnsupportedVersion = errors.New("storage: unsupported blob version")
	// ErrPassphraseRequired is returned when decrypting an encrypted blob without a passphrase.
	ErrPassphraseRequired = errors.New("storage: blob is encrypted but no passphrase was supplied")
)

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
}

// EncodeBlob wraps a canonical plaintext document in the spec.md §6 blob
// format. If passphrase is empty the document is stored unencrypted.
func EncodeBlob(plaintext []byte, passphrase string) ([]byte, error) {
	header := make([]byte, 0, 4+2+2+saltSize+nonceSize)
	header = append(header, []byte(blobMagic)...)
	header = binary.BigEndian.AppendUint16(header, blobVersion)

	if passphrase == "" {
		header = binary.BigEndian.AppendUint16(header, 0)
		header = append(header, make([]byte, saltSize+nonceSize)...)
		return append(header, plaintext...), nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("storage: generating salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("storage: generating nonce: %w", err)
	}

	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	header = binary.BigEndian.AppendUint16(header, flagEncrypted)
	header = append(header, salt...)
	header = append(header, nonce...)

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return append(header, ciphertext...), nil
}

// DecodeBlob reverses EncodeBlob. passphrase is ignored for unencrypted blobs.
func DecodeBlob(blob []byte, passphrase string) ([]byte, error) {
	const headerLen = 4 + 2 + 2 + saltSize + nonceSize
	if len(blob) < headerLen {
		return nil, ErrBadMagic
	}
	if string(blob[:4]) != blobMagic {
		return nil, ErrBadMagic
	}
	version := binary.BigEndian.Uint16(blob[4:6])
	if version != blobVersion {
		return nil, ErrUnsupportedVersion
	}
	flags := binary.BigEndian.Uint16(blob[6:8])
	salt := blob[8 : 8+saltSize]
	nonce := blob[8+saltSize : headerLen]
	payload := blob[headerLen:]

	if flags&flagEncrypted == 0 {
		return payload, nil
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: decrypting blob: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("storage: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("storage: building GCM: %w", err)
	}
	return gcm, nil
}

// IsEncrypted reports whether a blob's header flags mark it encrypted,
// without attempting to decode the payload.
func IsEncrypted(blob []byte) (bool, error) {
	if len(blob) < 8 {
		return false, ErrBadMagic
	}
	if string(blob[:4]) != blobMagic {
		return false, ErrBadMagic
	}
	flags := binary.BigEndian.Uint16(blob[6:8])
	return flags&flagEncrypted != 0, nil
}
