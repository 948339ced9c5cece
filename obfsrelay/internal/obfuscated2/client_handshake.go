package obfuscated2

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrHandshakeRejected is returned when the 64-byte preamble read from a
// client does not authenticate against any configured user, or could not be
// read in full.
var ErrHandshakeRejected = errors.New("obfuscated2: handshake rejected")

// UserSecret is one configured user's name and 16-byte shared secret.
type UserSecret struct {
	Name   string
	Secret []byte
}

// ClientHandshakeResult is what a successful client handshake yields: the
// matched user, the datacenter the client asked for, wrappers for the
// connection already primed with the winning CipherStates, and the 48-byte
// relay->client key material a fast-mode upstream dial can reuse.
type ClientHandshakeResult struct {
	User      string
	DC        int
	Reader    *Reader
	Writer    *Writer
	ReuseKeys [keyIVLen]byte
}

// AcceptClientHandshake reads the fixed 64-byte preamble from conn and tries
// every configured user, in order, until one decrypts it to a frame ending
// in the magic constant. Each user gets a fresh trial decryptor: CTR state
// advances on every XORKeyStream call, so a decryptor that failed to match
// cannot be reused for the next candidate.
func AcceptClientHandshake(conn io.ReadWriter, users []UserSecret) (*ClientHandshakeResult, error) {
	var raw frame

	if _, err := io.ReadFull(conn, raw[:]); err != nil {
		return nil, fmt.Errorf("%w: short read: %w", ErrHandshakeRejected, err)
	}

	for _, u := range users {
		decKey := deriveKey(raw.prekey(), u.Secret)

		decIV := make([]byte, ivLen)
		copy(decIV, raw.iv())

		decryptor, err := newAESCTR(decKey[:], decIV)
		if err != nil {
			return nil, fmt.Errorf("cannot build trial decryptor: %w", err)
		}

		var decrypted frame

		decryptor.XORKeyStream(decrypted[:], raw[:])

		if !bytes.Equal(decrypted.magic(), magic[:]) {
			continue
		}

		reversed := reverseKeyIV(raw.keyIV())
		encKey := deriveKey(reversed[:prekeyLen], u.Secret)
		encIV := make([]byte, ivLen)
		copy(encIV, reversed[prekeyLen:])

		encryptor, err := newAESCTR(encKey[:], encIV)
		if err != nil {
			return nil, fmt.Errorf("cannot build encryptor: %w", err)
		}

		dc := abs(int(int16(binary.LittleEndian.Uint16(decrypted.dcIndexField())))) - 1

		var reuse [keyIVLen]byte
		copy(reuse[:prekeyLen], encKey[:])
		copy(reuse[prekeyLen:], encIV)

		return &ClientHandshakeResult{
			User:      u.Name,
			DC:        dc,
			Reader:    NewReader(conn, decryptor),
			Writer:    NewWriter(conn, encryptor),
			ReuseKeys: reuse,
		}, nil
	}

	return nil, ErrHandshakeRejected
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
