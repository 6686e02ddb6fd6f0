package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/containerd/v2/pkg/shim"

	"github.com/MarcinKonowalczyk/bfc/bf"
	bfshim "github.com/MarcinKonowalczyk/bfc/shim"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// the task service re-invokes this binary to run each container's program
	if ok, args := bfshim.IsInterpreterArg(os.Args[1:]); ok {
		err := bfshim.RunInterpreter(ctx, args, os.Stdin, os.Stdout)
		if err != nil && bf.ExitStatus(err) != 0 {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		cancel()
		os.Exit(bf.ExitStatus(err))
	}

	shim.Run(ctx, bfshim.NewManager(bfshim.RuntimeName))
}
