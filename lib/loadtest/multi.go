package loadtest

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunMulti runs one test per pad on maxPads pads at the same time. Every pad
// gets three authors unless options name other numbers. It fails with the
// first failing pad.
func RunMulti(ctx context.Context, options Options, maxPads int, logger *zap.SugaredLogger) ([]Snapshot, error) {
	if maxPads <= 0 {
		maxPads = 10
	}
	if options.Authors == 0 && options.Lurkers == 0 {
		options.Authors = 3
	}
	if options.Duration <= 0 {
		options.Duration = 30 * time.Second
	}
	// every pad gets its own random name
	if i := strings.Index(options.URL, "/p/"); i != -1 {
		options.URL = options.URL[:i]
	}

	snapshots := make([]Snapshot, maxPads)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < maxPads; i++ {
		g.Go(func() error {
			snapshot, err := Run(ctx, options, logger, time.Second, nil)
			snapshots[i] = snapshot
			if err != nil {
				logger.Errorf("load test of pad %s failed: %v", snapshot.PadId, err)
			}
			return err
		})

		// stagger the pads a little
		select {
		case <-ctx.Done():
		case <-time.After(100 * time.Millisecond):
		}
	}
	err := g.Wait()
	return snapshots, err
}
