// Command relcheck runs relational analyses over expression trees.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/relcheck/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "relcheck:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
