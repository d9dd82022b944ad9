// The main package for the pace executable.
package main

import (
	"github.com/JakeFAU/pace/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
