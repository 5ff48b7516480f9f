package main

import (
	"flag"
	"fmt"
	"os"
)

func cmdDiff(args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	cfgPath := fs.String("c", "", "config file path")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: rs2c diff [-c config.yml]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	log := newLogger()

	cfg, c, err := bootstrap(*cfgPath)
	if err != nil {
		log.WithError(err).Error("bootstrap failed")
		os.Exit(1)
	}

	if err := c.Diff(); err != nil {
		log.WithError(err).Error("diff failed")
		os.Exit(1)
	}

	exitCode := 0
	for _, f := range c.Files() {
		for _, e := range f.Errors {
			fmt.Printf("%s:%d:%d: %s\n", f.RelPath, e.Range.Start.Line, e.Range.Start.Column, e.Message)
			exitCode = 1
		}
	}

	if c.Dirty() {
		if err := c.Save(cfg.CachePath); err != nil {
			log.WithError(err).Error("saving cache failed")
			os.Exit(1)
		}
	}

	fmt.Printf("%d files tracked\n", len(c.Files()))
	os.Exit(exitCode)
}
