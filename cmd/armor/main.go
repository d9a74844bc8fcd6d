// Command armor is a small HTTP client CLI built on the armor library.
// Every request it sends passes through the full security pipeline.
package main

import "github.com/Sentinel-Gate/armor/cmd/armor/cmd"

func main() {
	cmd.Execute()
}
