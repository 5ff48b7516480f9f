package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/btouchard/rs2c/internal/compiler/cache"
)

// cmdWatch keeps the project cache in sync with the filesystem: an initial
// full Diff, then an fsnotify watch over the source root driving
// incremental Recompile calls as .rs2 files are written, plus the
// background flusher persisting the cache every FlushInterval.
func cmdWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	cfgPath := fs.String("c", "", "config file path")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: rs2c watch [-c config.yml]\n\nFlags:\n")
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
		log.WithError(err).Error("initial diff failed")
		os.Exit(1)
	}
	log.WithField("files", len(c.Files())).Info("initial diff complete")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Error("creating watcher")
		os.Exit(1)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, cfg.SourceRoot); err != nil {
		log.WithError(err).Error("watching source root")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	c.RecompileHook = func(p string) {
		log.WithField("file", p).Info("recompiling")
	}

	wait := cache.StartFlusher(ctx, c, cfg.CachePath, cfg.FlushInterval, log)

	log.Info("watching for changes")
	for {
		select {
		case <-ctx.Done():
			wait()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				wait()
				return
			}
			if !strings.HasSuffix(event.Name, ".rs2") {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			handleChange(log, c, cfg.SourceRoot, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				wait()
				return
			}
			log.WithError(err).Error("watcher error")
		}
	}
}

func handleChange(log *logrus.Logger, c *cache.Cache, sourceRoot, path string) {
	rel, err := filepath.Rel(sourceRoot, path)
	if err != nil {
		log.WithError(err).Error("resolving changed path")
		return
	}
	rel = filepath.ToSlash(rel)

	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("file", rel).Error("reading changed file")
		return
	}

	errs := c.Recompile(rel, data)
	for _, e := range errs {
		log.WithField("file", rel).Warnf("%d:%d: %s", e.Range.Start.Line, e.Range.Start.Column, e.Message)
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
