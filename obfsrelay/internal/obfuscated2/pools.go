package obfuscated2

import (
	"crypto/sha256"
	"hash"
	"sync"
)

// writeBufferSize is the default scratch buffer size for Writer.Write. Most
// pump reads are bounded by the configured read-buffer size, but the pool
// grows buffers on demand for larger writes.
const writeBufferSize = 4096

var (
	sha256HasherPool = sync.Pool{
		New: func() interface{} {
			return sha256.New()
		},
	}

	writeBufferPool = sync.Pool{
		New: func() interface{} {
			buf := make([]byte, writeBufferSize)

			return &buf
		},
	}
)

func acquireSha256Hasher() hash.Hash {
	return sha256HasherPool.Get().(hash.Hash) //nolint: forcetypeassert
}

func releaseSha256Hasher(h hash.Hash) {
	h.Reset()
	sha256HasherPool.Put(h)
}

// acquireWriteBuffer returns a pooled buffer sized to at least size bytes.
func acquireWriteBuffer(size int) *[]byte {
	buf := writeBufferPool.Get().(*[]byte) //nolint: forcetypeassert

	if cap(*buf) < size {
		newBuf := make([]byte, size)

		return &newBuf
	}

	*buf = (*buf)[:size]

	return buf
}

func releaseWriteBuffer(buf *[]byte) {
	// Don't let one oversized write balloon the pool.
	if cap(*buf) > 262144 {
		return
	}

	writeBufferPool.Put(buf)
}
