// Command ci runs the test suite and the full pipeline inside a golang
// container and exports the produced artifacts.
//
//	cd ci && go run . [-source ..] [-export ../artifacts]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"dagger.io/dagger"
)

const goImage = "golang:1.24"

func main() {
	source := flag.String("source", "..", "repository root")
	export := flag.String("export", "../artifacts", "where to export artifacts/")
	flag.Parse()

	if err := run(context.Background(), *source, *export); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, source, export string) error {
	client, err := dagger.Connect(ctx, dagger.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("connect to dagger: %w", err)
	}
	defer client.Close()

	src := client.Host().Directory(source, dagger.HostDirectoryOpts{
		Exclude: []string{".git", "artifacts", "logs", "data/cleaned", "_examples", "ci"},
	})

	base := client.Container().
		From(goImage).
		WithMountedCache("/go/pkg/mod", client.CacheVolume("mlpipe-go-mod")).
		WithMountedCache("/root/.cache/go-build", client.CacheVolume("mlpipe-go-build")).
		WithDirectory("/src", src).
		WithWorkdir("/src")

	fmt.Println("--- Stage 1: go test ./... ---")
	tested := base.WithExec([]string{"go", "test", "./..."})
	if _, err := tested.Sync(ctx); err != nil {
		return fmt.Errorf("tests: %w", err)
	}

	fmt.Println("--- Stage 2: mlpipe run ---")
	ran := tested.WithExec([]string{"go", "run", "./cmd/mlpipe", "run"})

	fmt.Println("--- Stage 3: export artifacts ---")
	if _, err := ran.Directory("artifacts").Export(ctx, export); err != nil {
		return fmt.Errorf("export artifacts: %w", err)
	}
	fmt.Println("--- Pipeline complete ---")
	return nil
}
