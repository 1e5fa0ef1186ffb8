package main

/*
#include <stdlib.h>

typedef void (*nyx_mobile_log_fn)(int level, const char *message);

static void nyx_mobile_call_log(void *fn, int level, const char *message) {
	((nyx_mobile_log_fn)fn)(level, message);
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

// cLogSink forwards boundary log lines to a host function pointer.
type cLogSink struct {
	mu sync.Mutex
	fn unsafe.Pointer
}

func levelCode(level string) C.int {
	switch level {
	case "warn":
		return 1
	case "info":
		return 2
	case "debug":
		return 3
	case "trace":
		return 4
	}
	return 0
}

func (s *cLogSink) Log(level string, message string) {
	msg := C.CString(message)
	defer C.free(unsafe.Pointer(msg))
	// Host callbacks are not required to be reentrant.
	s.mu.Lock()
	C.nyx_mobile_call_log(s.fn, levelCode(level), msg)
	s.mu.Unlock()
}
