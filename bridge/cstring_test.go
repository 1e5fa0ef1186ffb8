package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyCStringSizeQuery(t *testing.T) {
	assert.Equal(t, len(Version), CopyCString(nil, Version))
	assert.Equal(t, 0, CopyCString(nil, ""))
	assert.Equal(t, 11, CopyCString([]byte{}, "hello world"))
}

func TestCopyCStringTruncates(t *testing.T) {
	buf := []byte{'x', 'x', 'x', 'x'}
	n := CopyCString(buf, "hello")
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{'h', 'e', 'l', 0}, buf)
}

func TestCopyCStringSingleByte(t *testing.T) {
	buf := []byte{'x'}
	assert.Equal(t, 0, CopyCString(buf, "hello"))
	assert.Equal(t, byte(0), buf[0])
}

func TestCopyCStringFits(t *testing.T) {
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = 0xff
	}
	n := CopyCString(buf, "1.0.0")
	assert.Equal(t, 5, n)
	assert.Equal(t, "1.0.0", string(buf[:n]))
	assert.Equal(t, byte(0), buf[n])
	assert.Equal(t, byte(0xff), buf[n+1], "bytes past the terminator are untouched")
}

func TestLastErrorSizeQueryMatchesMessage(t *testing.T) {
	r := newTestRuntime(t)
	assert.Equal(t, 0, CopyCString(nil, r.LastError()))

	_ = r.PushWake()
	msg := r.LastError()
	assert.Equal(t, len(msg), CopyCString(nil, msg))
	buf := make([]byte, len(msg)+1)
	assert.Equal(t, len(msg), CopyCString(buf, msg))
	assert.Equal(t, msg, string(buf[:len(msg)]))
}
