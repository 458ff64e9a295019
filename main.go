// ./main.go
package main

import (
	"github.com/xkilldash9x/promptpilot/cmd"
)

// main is the entry point for the promptpilot CLI.
func main() {
	cmd.Execute()
}
