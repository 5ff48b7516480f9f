package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "diff":
		cmdDiff(args)
	case "recompile":
		cmdRecompile(args)
	case "preview":
		cmdPreview(args)
	case "watch":
		cmdWatch(args)
	case "-h", "-help", "--help", "help":
		usage()
	default:
		_, _ = fmt.Fprintf(os.Stderr, "rs2c: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage: rs2c <diff|recompile|preview|watch> [flags]\n")
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}
