package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func cmdRecompile(args []string) {
	fs := flag.NewFlagSet("recompile", flag.ExitOnError)
	cfgPath := fs.String("c", "", "config file path")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: rs2c recompile [-c config.yml] <file.rs2>\n\nFlags:\n")
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

	c.RecompileHook = func(p string) {
		fmt.Printf("recompiling %s\n", p)
	}

	errs := c.Recompile(rel, data)
	for _, e := range errs {
		fmt.Printf("%s:%d:%d: %s\n", rel, e.Range.Start.Line, e.Range.Start.Column, e.Message)
	}

	if err := c.Save(cfg.CachePath); err != nil {
		log.WithError(err).Error("saving cache failed")
		os.Exit(1)
	}

	if len(errs) > 0 {
		os.Exit(1)
	}
}
