// ./main.go
package main

import (
	"github.com/mbw0x/autofill-agent/cmd"
)

// main is the entry point for the autofill-agent application.
func main() {
	cmd.Execute()
}
