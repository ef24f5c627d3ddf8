// Package bufpool provides a sync.Pool of bytes.Buffer used to serialize
// outgoing messages without allocating on every write.
package bufpool

import (
	"bytes"
	"sync"
)

// maxRetained is the largest buffer capacity returned to the pool. Larger
// buffers come from unusually big requests and are left to the GC.
const maxRetained = 64 << 10

type Pool struct {
	pool sync.Pool
}

func New(initialSize int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
	}
}

func (p *Pool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *Pool) Put(buf *bytes.Buffer) {
	if buf.Cap() > maxRetained {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}
