//go:build ios

package main

// Extensions linking the static archive share a small jetsam allowance with
// the host's Swift code, so the boundary takes at most 24 MiB of it.
var iosBudget = memoryBudget{limit: 24 << 20, gcPercent: 50}

func init() {
	iosBudget.apply(runtimeKnobs)
}
