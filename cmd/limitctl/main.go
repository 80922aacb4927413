package main

import (
	"context"
	"fmt"
	"os"

	"gatekeeper/cmd/limitctl/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
