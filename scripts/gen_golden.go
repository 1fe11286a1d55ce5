package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
)

// Regenerates the golden emitted-source fixtures: builds the interpreter,
// runs `comp` over every testdata program, and renames the emitted .c files
// into .c.golden.

var dir = flag.String("dir", "testdata", "directory of .forth programs")

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bin := filepath.Join(os.TempDir(), "stacker.gen")
	build := exec.CommandContext(ctx, "go", "build", "-o", bin, ".")
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		log.Fatalf("build failed: %v", err)
	}
	defer os.Remove(bin)

	paths, err := filepath.Glob(filepath.Join(*dir, "*.forth"))
	if err != nil {
		log.Fatalln(err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		path := path
		eg.Go(func() error {
			cmd := exec.CommandContext(ctx, bin, "comp", path)
			cmd.Stderr = os.Stderr
			if err := cmd.Run(); err != nil {
				return fmt.Errorf("comp %v: %w", path, err)
			}
			return os.Rename(path+".c", path+".c.golden")
		})
	}
	if err := eg.Wait(); err != nil {
		log.Fatalln(err)
	}
}
