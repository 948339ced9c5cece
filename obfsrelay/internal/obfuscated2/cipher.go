package obfuscated2

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// newAESCTR builds the C1 primitive: AES in CTR mode with a 128-bit counter
// seeded from a big-endian iv. crypto/cipher.NewCTR already XORs arbitrary,
// non-block-aligned runs and carries counter state across calls, which is
// exactly the contract the handshake and the stream wrappers rely on.
func newAESCTR(key, iv []byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cannot create AES cipher: %w", err)
	}

	return cipher.NewCTR(block, iv), nil
}

// deriveKey computes SHA-256(prekey || secret), the session AES-256 key for
// one direction of a client connection.
func deriveKey(prekey, secret []byte) [32]byte {
	h := acquireSha256Hasher()
	defer releaseSha256Hasher(h)

	h.Write(prekey)
	h.Write(secret)

	var out [32]byte

	h.Sum(out[:0])

	return out
}

// identityStream is a cipher.Stream that does not transform anything. It is
// swapped in for the two CipherStates that fast mode elides, so the byte
// crossing the wrapper is forwarded verbatim.
type identityStream struct{}

func (identityStream) XORKeyStream(dst, src []byte) {
	copy(dst, src)
}

// Identity returns the no-op cipher.Stream used by fast-mode elision.
func Identity() cipher.Stream {
	return identityStream{}
}
