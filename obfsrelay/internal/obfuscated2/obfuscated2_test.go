package obfuscated2

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildClientPreamble synthesises a valid 64-byte obfuscated2 client
// preamble for the given secret and datacenter index: bytes 0..56 travel in
// the clear (the key material plus unused skip bytes), bytes 56..64 carry
// the magic and dc index encrypted with the key/iv those clear bytes
// encode. This mirrors DialUpstreamHandshake's own wire construction.
func buildClientPreamble(t *testing.T, secret []byte, dc int) []byte {
	t.Helper()

	var plain frame

	_, err := rand.Read(plain[:magicPos])
	require.NoError(t, err)

	copy(plain.magic(), magic[:])
	binary.LittleEndian.PutUint16(plain.dcIndexField(), uint16(int16(dc+1)))

	key := deriveKey(plain.prekey(), secret)
	iv := append([]byte(nil), plain.iv()...)

	encryptor, err := newAESCTR(key[:], iv)
	require.NoError(t, err)

	var cipher frame
	encryptor.XORKeyStream(cipher[:], plain[:])

	wire := make([]byte, handshakeLen)
	copy(wire[:magicPos], plain[:magicPos])
	copy(wire[magicPos:], cipher[magicPos:])

	return wire
}

func TestAcceptClientHandshakeMatchesConfiguredUser(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 16)
	wire := buildClientPreamble(t, secret, 2)

	conn, peer := net.Pipe()
	defer conn.Close()
	defer peer.Close()

	go func() { peer.Write(wire) }()

	result, err := AcceptClientHandshake(conn, []UserSecret{
		{Name: "alice", Secret: bytes.Repeat([]byte{0x99}, 16)},
		{Name: "bob", Secret: secret},
	})
	require.NoError(t, err)
	require.Equal(t, "bob", result.User)
	require.Equal(t, 2, result.DC)
}

func TestAcceptClientHandshakeRejectsUnknownSecret(t *testing.T) {
	wire := buildClientPreamble(t, bytes.Repeat([]byte{0x11}, 16), 0)

	conn, peer := net.Pipe()
	defer conn.Close()
	defer peer.Close()

	go func() { peer.Write(wire) }()

	_, err := AcceptClientHandshake(conn, []UserSecret{
		{Name: "alice", Secret: bytes.Repeat([]byte{0x99}, 16)},
	})
	require.ErrorIs(t, err, ErrHandshakeRejected)
}

func TestAcceptClientHandshakeRejectsShortRead(t *testing.T) {
	conn, peer := net.Pipe()
	defer conn.Close()

	go func() {
		peer.Write([]byte("too short"))
		peer.Close()
	}()

	_, err := AcceptClientHandshake(conn, []UserSecret{{Name: "alice", Secret: make([]byte, 16)}})
	require.ErrorIs(t, err, ErrHandshakeRejected)
}

func TestReaderWriterRoundTripAtArbitraryChunkSizes(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, 32)
	iv := bytes.Repeat([]byte{0x09}, 16)

	encStream, err := newAESCTR(key, iv)
	require.NoError(t, err)
	decStream, err := newAESCTR(key, iv)
	require.NoError(t, err)

	var wire bytes.Buffer
	w := NewWriter(&wire, encStream)

	plaintext := make([]byte, 50_000)
	_, err = rand.Read(plaintext)
	require.NoError(t, err)

	chunkSizes := []int{1, 3, 7, 4096, 1, 17000, 2}
	offset := 0

	for _, size := range chunkSizes {
		if offset+size > len(plaintext) {
			size = len(plaintext) - offset
		}

		_, err := w.Write(plaintext[offset : offset+size])
		require.NoError(t, err)

		offset += size
	}

	r := NewReader(&wire, decStream)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, plaintext[:offset], got)
}

func TestFastModeUpstreamKeystreamMatchesClientWriterKeystream(t *testing.T) {
	secret := bytes.Repeat([]byte{0x55}, 16)
	wire := buildClientPreamble(t, secret, 1)

	clientConn, clientPeer := net.Pipe()
	defer clientConn.Close()
	defer clientPeer.Close()

	go func() { clientPeer.Write(wire) }()

	clientResult, err := AcceptClientHandshake(clientConn, []UserSecret{{Name: "bob", Secret: secret}})
	require.NoError(t, err)

	reuse := clientResult.ReuseKeys

	upstreamConn, upstreamPeer := net.Pipe()
	defer upstreamConn.Close()
	defer upstreamPeer.Close()

	readDone := make(chan []byte, 1)

	go func() {
		buf := make([]byte, handshakeLen)
		io.ReadFull(upstreamPeer, buf)
		readDone <- buf
	}()

	upstreamResult, err := DialUpstreamHandshake(upstreamConn, &reuse)
	require.NoError(t, err)

	<-readDone

	plaintext := []byte("identical keystream check payload")

	var clientBoundWire bytes.Buffer
	clientResult.Writer.dst = &clientBoundWire
	_, err = clientResult.Writer.Write(plaintext)
	require.NoError(t, err)

	decrypted := make([]byte, len(plaintext))
	upstreamResult.Reader.cipher.XORKeyStream(decrypted, clientBoundWire.Bytes())

	require.Equal(t, plaintext, decrypted)
}
