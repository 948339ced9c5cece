package obfuscated2

import (
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateUpstreamFrameAvoidsReservedPatterns(t *testing.T) {
	for i := 0; i < 500; i++ {
		f, err := generateUpstreamFrame()
		require.NoError(t, err)

		require.NotEqual(t, byte(reservedFirstByte), f[0])

		first4 := binary.LittleEndian.Uint32(f[:4])
		for _, reserved := range reservedBeginnings {
			require.NotEqual(t, reserved, first4)
		}

		require.False(t, f[4] == 0 && f[5] == 0 && f[6] == 0 && f[7] == 0)
	}
}

func TestDialUpstreamHandshakeSendsCorrectWireLayout(t *testing.T) {
	conn, peer := net.Pipe()
	defer conn.Close()

	received := make(chan []byte, 1)

	go func() {
		buf := make([]byte, handshakeLen)
		io.ReadFull(peer, buf)
		received <- buf
		peer.Close()
	}()

	result, err := DialUpstreamHandshake(conn, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Reader)
	require.NotNil(t, result.Writer)

	wire := <-received
	require.Len(t, wire, handshakeLen)

	// Bytes 0..56 are the plaintext key material; a receiver with no secret
	// (the role a real datacenter plays) derives the same key/iv directly
	// from them and must recover the magic constant from bytes 56..64.
	var f frame
	copy(f[:], wire)

	decryptor, err := newAESCTR(f.keyIV()[:prekeyLen], f.keyIV()[prekeyLen:])
	require.NoError(t, err)

	var decrypted frame
	decryptor.XORKeyStream(decrypted[:], f[:])

	require.Equal(t, magic[:], decrypted.magic())
}
