package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// cmdPreview compiles a buffer against the live cache without persisting
// anything, through cache.RecompileNonPersistent, for scripting and CI
// dry-runs. (The WASM playground offers a similar preview but calls
// pipeline.Compile directly, with no cache.)
func cmdPreview(args []string) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	cfgPath := fs.String("c", "", "config file path")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: rs2c preview [-c config.yml] <file.rs2>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	log := newLogger()

	cfg, c, err := bootstrap(*cfgPath)
	if err != nil {
		log.WithError(err).Error("bootstrap failed")
		os.Exit(1)
	}

	inputFile := fs.Arg(0)
	rel, err := filepath.Rel(cfg.SourceRoot, inputFile)
	if err != nil {
		log.WithError(err).Error("resolving relative path")
		os.Exit(1)
	}
	rel = filepath.ToSlash(rel)

	data, err := os.ReadFile(inputFile)
	if err != nil {
		log.WithError(err).Error("reading file")
		os.Exit(1)
	}

	// A prior full Diff populates the cache's view of the project; preview
	// compiles against whatever symbols are already declared, without
	// requiring it.
	_ = c.Diff()

	result := c.RecompileNonPersistent(rel, data)

	exitCode := 0
	for _, e := range result.Errors {
		fmt.Printf("%s:%d:%d: %s\n", rel, e.Range.Start.Line, e.Range.Start.Column, e.Message)
		exitCode = 1
	}
	for _, s := range result.Scripts {
		fmt.Print(s.Script.Dump())
	}

	os.Exit(exitCode)
}
