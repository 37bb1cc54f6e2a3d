package loadtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/cli"
	"github.com/ether/easysync/lib/utils"
	"go.uber.org/zap"
)

// ErrTooManyPending is returned by a test run with UntilFail once the server
// stops accepting commits in time.
var ErrTooManyPending = errors.New("too many commits are not accepted")

const maxPendingCommits = 100

type Options struct {
	URL string
	// Authors and Lurkers are the numbers of clients to start. Without
	// either, clients are added until the test ends.
	Authors        int
	Lurkers        int
	Duration       time.Duration
	UntilFail      bool
	AppendInterval time.Duration
}

// Snapshot holds the counters of a test run at one point in time.
type Snapshot struct {
	PadId             string
	ClientsConnected  int64
	AuthorsConnected  int64
	LurkersConnected  int64
	AppendSent        int64
	ErrorCount        int64
	AppendAccepted    int64
	ChangeFromServer  int64
	NumConnectedUsers int64
	Elapsed           time.Duration
}

// Pending is the number of sent appends the server did not accept yet.
func (s Snapshot) Pending() int64 {
	return s.AppendSent - s.AppendAccepted
}

// Rate is the mean number of changes per second the clients got from the
// server.
func (s Snapshot) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.ChangeFromServer) / s.Elapsed.Seconds()
}

type metrics struct {
	clientsConnected  atomic.Int64
	authorsConnected  atomic.Int64
	lurkersConnected  atomic.Int64
	appendSent        atomic.Int64
	errorCount        atomic.Int64
	appendAccepted    atomic.Int64
	changeFromServer  atomic.Int64
	numConnectedUsers atomic.Int64
}

type run struct {
	padURL    string
	padId     string
	options   Options
	logger    *zap.SugaredLogger
	startTime time.Time
	metrics   metrics

	clientsMu sync.Mutex
	clients   []*cli.Client
}

func (r *run) snapshot() Snapshot {
	return Snapshot{
		PadId:             r.padId,
		ClientsConnected:  r.metrics.clientsConnected.Load(),
		AuthorsConnected:  r.metrics.authorsConnected.Load(),
		LurkersConnected:  r.metrics.lurkersConnected.Load(),
		AppendSent:        r.metrics.appendSent.Load(),
		ErrorCount:        r.metrics.errorCount.Load(),
		AppendAccepted:    r.metrics.appendAccepted.Load(),
		ChangeFromServer:  r.metrics.changeFromServer.Load(),
		NumConnectedUsers: r.metrics.numConnectedUsers.Load(),
		Elapsed:           time.Since(r.startTime),
	}
}

// padURL adds a random pad to a server URL.
func padURL(rawURL string) string {
	if rawURL == "" {
		rawURL = "http://127.0.0.1:9001"
	}
	if strings.Contains(rawURL, "/p/") {
		return rawURL
	}
	return fmt.Sprintf("%s/p/%s", strings.TrimSuffix(rawURL, "/"), utils.RandomString(5))
}

// Run puts load on one pad until the duration is over or ctx is done.
// report is called with the current counters every interval.
func Run(ctx context.Context, options Options, logger *zap.SugaredLogger, interval time.Duration, report func(Snapshot)) (Snapshot, error) {
	if options.AppendInterval <= 0 {
		options.AppendInterval = 400 * time.Millisecond
	}
	target := padURL(options.URL)
	_, padId, err := cli.ParsePadURL(target)
	if err != nil {
		return Snapshot{}, err
	}

	r := &run{
		padURL:    target,
		padId:     padId,
		options:   options,
		logger:    logger,
		startTime: time.Now(),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if options.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Duration)
		defer cancel()
	}

	var wg sync.WaitGroup
	defer func() {
		cancel()
		r.closeClients()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.rampUp(ctx)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			snapshot := r.snapshot()
			if report != nil {
				report(snapshot)
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return snapshot, nil
			}
			return snapshot, ctx.Err()
		case <-ticker.C:
			snapshot := r.snapshot()
			if report != nil {
				report(snapshot)
			}
			if options.UntilFail && snapshot.Pending() > maxPendingCommits {
				return snapshot, fmt.Errorf("%w: %d pending", ErrTooManyPending, snapshot.Pending())
			}
		}
	}
}

func (r *run) rampUp(ctx context.Context) {
	if r.options.Authors > 0 || r.options.Lurkers > 0 {
		var users []bool
		for i := 0; i < r.options.Lurkers; i++ {
			users = append(users, false)
		}
		for i := 0; i < r.options.Authors; i++ {
			users = append(users, true)
		}
		r.startUsers(ctx, users)
		return
	}

	// one author and three lurkers every second
	users := []bool{true, false, false, false}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		r.startUsers(ctx, users)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *run) startUsers(ctx context.Context, users []bool) {
	delay := 200 * time.Millisecond / time.Duration(len(users))
	for _, author := range users {
		if ctx.Err() != nil {
			return
		}
		if err := r.newClient(ctx, author); err != nil {
			r.metrics.errorCount.Add(1)
			r.logger.Warnf("error connecting client: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (r *run) newClient(ctx context.Context, author bool) error {
	client, err := cli.NewClient(r.padURL, r.logger)
	if err != nil {
		return err
	}

	// appends since the client last had nothing pending
	var unaccepted atomic.Int64

	client.OnConnected(func(c *cli.Client) {
		r.metrics.clientsConnected.Add(1)
		if !author {
			r.metrics.lurkersConnected.Add(1)
			return
		}
		r.metrics.authorsConnected.Add(1)
		go r.write(ctx, c, &unaccepted)
	})
	client.OnNumConnectedUsers(func(count int) {
		r.metrics.numConnectedUsers.Store(int64(count))
	})
	client.OnAcceptCommit(func(int) {
		if !client.Pending() {
			r.metrics.appendAccepted.Add(unaccepted.Swap(0))
		}
	})
	client.OnNewContents(func(apool.AText) {
		r.metrics.changeFromServer.Add(1)
	})
	client.OnDisconnect(func(err error) {
		if err != nil && ctx.Err() == nil {
			r.metrics.errorCount.Add(1)
		}
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	if ctx.Err() != nil {
		return client.Close()
	}
	r.clients = append(r.clients, client)
	return nil
}

// write appends random text until ctx is done or the client disconnects.
func (r *run) write(ctx context.Context, client *cli.Client, unaccepted *atomic.Int64) {
	ticker := time.NewTicker(r.options.AppendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			r.metrics.appendSent.Add(1)
			unaccepted.Add(1)
			if err := client.Append(utils.RandomString(5)); err != nil {
				r.metrics.appendSent.Add(-1)
				unaccepted.Add(-1)
				r.metrics.errorCount.Add(1)
				r.logger.Debugf("error appending: %v", err)
			}
		}
	}
}

func (r *run) closeClients() {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	for _, client := range r.clients {
		_ = client.Close()
	}
	r.clients = nil
}
