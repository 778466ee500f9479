//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for docflow developer tooling.
package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/pdiddy/docflow/internal/container"
)

const (
	binDir  = "bin"
	binName = "docflow"
	cmdPkg  = "./cmd/docflow"

	// buildTags enables FTS5 in the SQLite driver.
	buildTags = "sqlite_fts5"

	markitdownImage = "markitdown:latest"
	markitdownDir   = "build/markitdown"
)

// workDirs lists the local directories docflow reads and writes.
var workDirs = []string{
	".docflow",
	".secrets",
}

// Default is the target run when mage is called without one.
var Default = Build

// Init creates the local state and secrets directories.
func Init() error {
	for _, dir := range workDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Working directories initialized.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-tags", buildTags, "-ldflags", ldflags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "-tags", buildTags, "./...")
}

// Vet runs go vet over every package.
func Vet() error {
	return sh.RunV("go", "vet", "-tags", buildTags, "./...")
}

// Check runs vet and the tests.
func Check() {
	mg.SerialDeps(Vet, Test)
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}

// Markitdown builds the container image used to convert PDF and Office
// knowledge files.
func Markitdown(ctx context.Context) error {
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return err
	}
	if err := sh.RunV(rt.Name(), "build", "-t", markitdownImage, markitdownDir); err != nil {
		return fmt.Errorf("%s build: %w", rt.Name(), err)
	}
	fmt.Printf("Built image %s with %s\n", markitdownImage, rt.Name())
	return nil
}

// Stats prints project metrics: Go production and test lines, and the word
// count of the Markdown documentation.
func Stats() error {
	var prod, tests, words int
	err := filepath.WalkDir(".", func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case strings.HasSuffix(path, "_test.go"):
			n, err := countLines(path)
			tests += n
			return err
		case filepath.Ext(path) == ".go":
			n, err := countLines(path)
			prod += n
			return err
		case filepath.Ext(path) == ".md":
			data, err := os.ReadFile(path)
			words += len(bytes.Fields(data))
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", tests)
	fmt.Printf("Words (documentation):           %d\n", words)
	return nil
}

// countLines counts the non-blank lines of a file.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}
