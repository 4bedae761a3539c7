// The main package for the shotprogress executable.
package main

import (
	"github.com/JakeFAU/shotprogress/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
