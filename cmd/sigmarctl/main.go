package main

import (
	"fmt"
	"os"

	"sigmarservicos.com.br/sigmar-web/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
