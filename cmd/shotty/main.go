// Shotty - list and manage EC2 instances, volumes and snapshots by project.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/oklog/run"
)

const exitInterrupted = 130

func main() {
	os.Exit(execute(newApp(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command tree next to a signal handler and maps the
// outcome to a process exit code.
func execute(a *app, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group
	g.Add(func() error {
		return root.ExecuteContext(ctx)
	}, func(error) {
		cancel()
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err := g.Run()
	a.finish(err)

	var sigErr *run.SignalError
	switch {
	case errors.As(err, &sigErr):
		_, _ = fmt.Fprintf(stderr, "Interrupted (%s)\n", sigErr.Signal)
		return exitInterrupted
	case err != nil:
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
