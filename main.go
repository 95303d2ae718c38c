// The main package for the govjobs executable.
package main

import (
	"github.com/JakeFAU/govjobs-pipeline/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
