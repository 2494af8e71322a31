// Command ndomog is an offline-first inventory client.
package main

import (
	"os"

	"github.com/roach88/ndomog/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
