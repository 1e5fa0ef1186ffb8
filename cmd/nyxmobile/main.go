//  main.go
//  Nyx Mobile Bridge
//
//  C ABI for embedding applications. Build with
//    go build -buildmode=c-shared -o libnyx_mobile.so ./cmd/nyxmobile
//  or -buildmode=c-archive for iOS. include/nyx_mobile_ffi.h declares the
//  exported symbols.

package main

import (
	"math"
	"unsafe"

	"github.com/nyx-network/nyx-mobile/bridge"
	"github.com/nyx-network/nyx-mobile/platform"
)

func main() {}

func rt() *bridge.Runtime { return bridge.Default() }

func pb() *platform.Bridge { return platform.Shared() }

// guard runs fn, converts its error to a status code and turns a panic into
// InternalError so nothing unwinds across the C boundary.
func guard(op string, fn func() error) (status int32) {
	defer func() {
		if v := recover(); v != nil {
			status = int32(bridge.StatusOf(rt().RecordPanic(op, v)))
		}
	}()
	return int32(bridge.StatusOf(fn()))
}

// guardInt is guard for calls returning a plain integer.
func guardInt(op string, fallback int32, fn func() int32) (out int32) {
	defer func() {
		if v := recover(); v != nil {
			_ = rt().RecordPanic(op, v)
			out = fallback
		}
	}()
	return fn()
}

// hostBytes views n bytes at p without copying. The slice must not outlive
// the call.
func hostBytes(p unsafe.Pointer, n uint64) ([]byte, bool) {
	if p == nil || n == 0 || n > math.MaxInt32 {
		return nil, false
	}
	return unsafe.Slice((*byte)(p), int(n)), true
}

func copyOut(buf unsafe.Pointer, n uint64, s string) int32 {
	if buf == nil || n == 0 {
		return int32(bridge.CopyCString(nil, s))
	}
	if n > math.MaxInt32 {
		return -1
	}
	return int32(bridge.CopyCString(unsafe.Slice((*byte)(buf), int(n)), s))
}

// copyVersion rejects an oversized capacity before the size-query check, so a
// NULL buffer with a huge length is an error rather than a query.
func copyVersion(buf unsafe.Pointer, n uint64, s string) int32 {
	if n > math.MaxInt32 {
		return -1
	}
	return copyOut(buf, n, s)
}
