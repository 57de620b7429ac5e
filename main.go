// The main package for the signals executable.
package main

import (
	"github.com/JakeFAU/company-signals/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
