// Command smoke runs the client scenario suite against a paramapi server and
// exits non-zero when any scenario fails.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/paramapi/internal/smoke"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := smoke.NewCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
