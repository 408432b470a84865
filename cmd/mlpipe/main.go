// Command mlpipe runs the student score regression pipeline: ingestion,
// splitting, transformation with model evaluation, Ridge tuning, prediction
// and reporting.
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
