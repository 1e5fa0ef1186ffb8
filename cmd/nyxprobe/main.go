// Command nyxprobe exercises the Nyx mobile boundary from a desktop: scripted
// call sequences, a diagnostics server and memory checks.
package main

import "github.com/nyx-network/nyx-mobile/cmd/nyxprobe/cmd"

func main() {
	cmd.Execute()
}
