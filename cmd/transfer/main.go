// Command transfer imports, previews and exports person records from the
// command line. Run "transfer --help" for the available commands.
package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/persons/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()
	os.Exit(cli.Execute())
}
