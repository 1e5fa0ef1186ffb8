package main

import (
	"os"
	"runtime/debug"
)

// memoryBudget bounds the Go heap inside a host process that also runs its
// own runtime and UI.
type memoryBudget struct {
	limit     int64
	gcPercent int
}

type memoryKnobs struct {
	setLimit     func(int64) int64
	setGCPercent func(int) int
	getenv       func(string) string
}

var runtimeKnobs = memoryKnobs{
	setLimit:     debug.SetMemoryLimit,
	setGCPercent: debug.SetGCPercent,
	getenv:       os.Getenv,
}

// apply installs b unless the host already set GOMEMLIMIT or GOGC for the
// process, in which case the host's value wins.
func (b memoryBudget) apply(k memoryKnobs) {
	if k.getenv("GOMEMLIMIT") == "" && b.limit > 0 {
		k.setLimit(b.limit)
	}
	if k.getenv("GOGC") == "" && b.gcPercent > 0 {
		k.setGCPercent(b.gcPercent)
	}
}
