// Command depgraph writes and queries the dependency graph from the shell.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(newCLI()).Execute(); err != nil {
		os.Exit(1)
	}
}
