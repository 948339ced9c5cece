package obfuscated2

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// maxGenerationAttempts bounds the rejection-sampling loop in
// generateUpstreamFrame. Each iteration is rejected with probability
// < 1/256 + 5/2^32, so a run of this many consecutive rejections is not
// something that happens in practice; it exists so the loop provably
// terminates.
const maxGenerationAttempts = 1000

// reservedFirstByte is a preamble byte 0 value reserved by the wire format.
const reservedFirstByte = 0xef

// reservedBeginnings are 4-byte values at offset 0 that a valid upstream
// preamble must not start with: HTTP request lines and the TLS-looking
// 0xeeeeeeee marker.
var reservedBeginnings = []uint32{
	0x44414548, // "HEAD" little-endian
	0x54534f50, // "POST"
	0x20544547, // "GET "
	0xeeeeeeee,
}

func generateUpstreamFrame() (frame, error) {
	var f frame

	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		if _, err := rand.Read(f[:]); err != nil {
			return frame{}, fmt.Errorf("cannot generate random preamble: %w", err)
		}

		if f[0] == reservedFirstByte {
			continue
		}

		first4 := binary.LittleEndian.Uint32(f[:4])

		reserved := false

		for _, v := range reservedBeginnings {
			if first4 == v {
				reserved = true

				break
			}
		}

		if reserved {
			continue
		}

		if f[4]|f[5]|f[6]|f[7] == 0 {
			continue
		}

		return f, nil
	}

	return frame{}, fmt.Errorf("cannot generate a valid upstream preamble after %d attempts", maxGenerationAttempts)
}

// UpstreamHandshakeResult bundles the wrappers to use for an upstream
// connection after DialUpstreamHandshake has sent the preamble.
type UpstreamHandshakeResult struct {
	Reader *Reader
	Writer *Writer
}

// DialUpstreamHandshake synthesises a valid 64-byte preamble, sends it to
// conn (the first 56 bytes in the clear, the last 8 encrypted, exactly as
// a compliant client would), and returns wrappers for the connection primed
// with the resulting CipherStates.
//
// If reuse is non-nil, it must be the 48-byte relay->client key material
// (ClientHandshakeResult.ReuseKeys). Overwriting the preamble's key
// material with its reverse makes the datacenter's chosen decryption
// keystream identical to the relay's client-bound encryption keystream,
// which is what lets the supervisor elide a re-encryption in fast mode.
func DialUpstreamHandshake(conn io.ReadWriter, reuse *[keyIVLen]byte) (*UpstreamHandshakeResult, error) {
	f, err := generateUpstreamFrame()
	if err != nil {
		return nil, err
	}

	copy(f.magic(), magic[:])

	if reuse != nil {
		reversed := reverseKeyIV(reuse[:])
		copy(f.keyIV(), reversed[:])
	}

	reversed := reverseKeyIV(f.keyIV())

	// Role swap vs. the client handshake: our decryptor (reads from the
	// datacenter) uses the reversed slice, our encryptor (writes to the
	// datacenter) uses the forward slice. Neither is mixed with a secret:
	// on this leg the preamble bytes themselves ARE the AES key, because
	// the datacenter has no notion of a per-user secret.
	decKey := reversed[:prekeyLen]
	decIV := reversed[prekeyLen:]

	decryptor, err := newAESCTR(decKey, decIV)
	if err != nil {
		return nil, fmt.Errorf("cannot build upstream decryptor: %w", err)
	}

	encKey := f.keyIV()[:prekeyLen]
	encIV := f.keyIV()[prekeyLen:]

	encryptor, err := newAESCTR(encKey, encIV)
	if err != nil {
		return nil, fmt.Errorf("cannot build upstream encryptor: %w", err)
	}

	// Encrypt the whole frame so the encryptor's counter ends up 4 blocks
	// advanced (the correct starting position for payload bytes), but only
	// transmit the ciphertext for bytes 56..64: bytes 0..56 travel as the
	// plaintext the datacenter needs to derive the very keys we just used.
	var ciphertext frame

	encryptor.XORKeyStream(ciphertext[:], f[:])

	toSend := make([]byte, handshakeLen)
	copy(toSend[:magicPos], f[:magicPos])
	copy(toSend[magicPos:], ciphertext[magicPos:])

	if _, err := conn.Write(toSend); err != nil {
		return nil, fmt.Errorf("cannot send upstream preamble: %w", err)
	}

	return &UpstreamHandshakeResult{
		Reader: NewReader(conn, decryptor),
		Writer: NewWriter(conn, encryptor),
	}, nil
}
