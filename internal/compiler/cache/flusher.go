package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultFlushInterval is the flusher's default wake interval.
const DefaultFlushInterval = 5 * time.Second

// StartFlusher launches a background task that wakes every interval,
// observes the dirty flag, and saves the cache to path when set. It is a
// plain periodic task, not a coroutine fiber: no cancellation mid-save,
// only between ticks via ctx. The returned function blocks until the
// flusher has stopped.
func StartFlusher(ctx context.Context, c *Cache, path string, interval time.Duration, log *logrus.Logger) func() {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if c.Dirty() {
					if err := c.Save(path); err != nil {
						log.WithError(err).WithField("path", path).Error("final cache flush failed")
					}
				}
				return
			case <-ticker.C:
				if !c.Dirty() {
					continue
				}
				if err := c.Save(path); err != nil {
					log.WithError(err).WithField("path", path).Error("cache flush failed")
					continue
				}
				log.WithField("path", path).Debug("cache flushed")
			}
		}
	}()

	return func() { <-done }
}
