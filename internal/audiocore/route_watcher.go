package audiocore

import (
	"context"
	"slices"
	"time"

	"github.com/tphakala/audiograph/internal/logger"
)

// RouteWatcher polls a device enumerator and raises RouteChange events when
// the set of devices changes
type RouteWatcher struct {
	enumerator DeviceEnumerator
	interval   time.Duration
	notify     func(ChangeEvent) bool
	log        logger.Logger
	known      map[Direction][]string
}

// NewRouteWatcher creates a watcher that passes changes to notify
func NewRouteWatcher(enumerator DeviceEnumerator, interval time.Duration, notify func(ChangeEvent) bool, log logger.Logger) *RouteWatcher {
	if log == nil {
		log = logger.Global().Module("audiocore").Module("routes")
	}
	return &RouteWatcher{
		enumerator: enumerator,
		interval:   interval,
		notify:     notify,
		log:        log,
		known:      make(map[Direction][]string),
	}
}

// Run polls until ctx is done. The first poll records the baseline.
func (w *RouteWatcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.log.Info("route watcher disabled")
		return nil
	}

	w.Poll()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll enumerates once and raises a RouteChange if devices were added or
// removed since the last poll. It reports whether an event was raised.
func (w *RouteWatcher) Poll() bool {
	var added, removed []string
	for _, dir := range []Direction{DirectionOutput, DirectionInput} {
		devices, err := ListDevices(w.enumerator, dir)
		if err != nil {
			w.log.Warn("device enumeration failed",
				logger.String("direction", dir.String()),
				logger.Error(err))
			continue
		}

		ids := make([]string, 0, len(devices))
		for _, d := range devices {
			ids = append(ids, d.ID)
		}
		slices.Sort(ids)

		previous, seen := w.known[dir]
		w.known[dir] = ids
		if !seen {
			continue
		}
		added = append(added, difference(ids, previous)...)
		removed = append(removed, difference(previous, ids)...)
	}

	if len(added) == 0 && len(removed) == 0 {
		return false
	}

	w.log.Info("audio route changed",
		logger.Int("added", len(added)),
		logger.Int("removed", len(removed)))
	w.notify(ChangeEvent{
		Kind:    RouteChange,
		Reason:  "device set changed",
		Payload: map[string]any{"added": added, "removed": removed},
		Time:    time.Now(),
	})
	return true
}

// difference returns the sorted elements of a missing from b
func difference(a, b []string) []string {
	var out []string
	for _, id := range a {
		if _, found := slices.BinarySearch(b, id); !found {
			out = append(out, id)
		}
	}
	return out
}
