package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// InterruptContext returns a context cancelled on SIGINT/SIGTERM. Cancelling
// it unwinds in-flight browser sessions; once the caller has returned,
// cleanup removes half-written chapter folders from outputDir.
func InterruptContext(parent context.Context, outputDir string) (context.Context, func()) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	cleanup := func() {
		interrupted := ctx.Err() != nil && parent.Err() == nil
		stop()
		if !interrupted || outputDir == "" {
			return
		}

		fmt.Println("\nInterrupt received. Cleaning up...")
		CleanupUnfinishedTempFolders(outputDir)
		RemoveIfEmpty(outputDir)
	}

	return ctx, cleanup
}

func CleanupUnfinishedTempFolders(outputDir string) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasSuffix(name, "_tmp") {
			continue
		}

		full := filepath.Join(outputDir, name)
		if err := os.RemoveAll(full); err != nil {
			fmt.Printf("Error cleaning up %s: %v\n", full, err)
		} else {
			fmt.Printf("Removed %s\n", full)
		}
	}
}

func RemoveIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			fmt.Printf("Removed empty output folder: %s\n", dir)
		}
	}
}

func CleanupFolder(folder string) {
	_ = os.RemoveAll(folder)
}
