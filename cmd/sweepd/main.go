package main

import (
	"context"
	"fmt"
	"os"

	"sweepchain/cmd/sweepd/cmd"
)

func main() {
	if err := cmd.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
