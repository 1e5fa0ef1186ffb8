package bridge

import (
	"github.com/nyx-network/nyx-mobile/buffer"
)

// pooledBytes tracks a payload clone that may be backed by the shared buffer
// pool. Call release when the slice is no longer needed so the buffer can be
// recycled.
type pooledBytes struct {
	data   []byte
	pooled bool
}

// newPooledBytes clones src, serving it out of the shared pool when the
// payload fits a size class. Host buffers are never retained past the call.
func newPooledBytes(src []byte) pooledBytes {
	size := len(src)
	if size == 0 {
		return pooledBytes{}
	}
	if buf := buffer.Get(size); buf != nil {
		copy(buf, src)
		return pooledBytes{data: buf, pooled: true}
	}
	return pooledBytes{data: append([]byte(nil), src...)}
}

func (p *pooledBytes) release() {
	if p == nil || p.data == nil {
		return
	}
	if p.pooled {
		// Restore the slice to full capacity before returning it.
		_ = buffer.Put(p.data[:cap(p.data)])
	}
	p.data = nil
	p.pooled = false
}
