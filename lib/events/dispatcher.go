package events

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/ether/easysync/lib/pad"
	"github.com/ether/easysync/lib/settings"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseBackoff = 50 * time.Millisecond
	defaultMaxBackoff  = time.Second
)

// RevisionEvent is published for every stored revision.
type RevisionEvent struct {
	PadID     string `json:"padId"`
	Rev       int    `json:"rev"`
	Changeset string `json:"changeset"`
	Author    string `json:"author,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func newRevisionEvent(revision pad.Revision) RevisionEvent {
	return RevisionEvent{
		PadID:     revision.PadID,
		Rev:       revision.Rev,
		Changeset: revision.Changeset,
		Author:    revision.Author,
		Timestamp: revision.Timestamp,
	}
}

// Publisher receives the revisions of a pad.Manager and ships them until Run
// returns.
type Publisher interface {
	OnRevision(revision pad.Revision)
	Run(ctx context.Context) error
}

type Options struct {
	QueueSize   int
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Dispatcher sends revision events to a Kafka topic. Events are queued
// without blocking the commit path and are dropped when the queue is full or
// all retries failed. Events of one pad keep their order.
type Dispatcher struct {
	producer sarama.SyncProducer
	topic    string
	queues   []chan RevisionEvent
	options  Options
	logger   *zap.SugaredLogger
	dropped  atomic.Int64
}

func NewDispatcher(producer sarama.SyncProducer, topic string, options Options, logger *zap.SugaredLogger) *Dispatcher {
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.BaseBackoff <= 0 {
		options.BaseBackoff = defaultBaseBackoff
	}
	if options.MaxBackoff <= 0 {
		options.MaxBackoff = defaultMaxBackoff
	}
	queues := make([]chan RevisionEvent, options.Workers)
	for i := range queues {
		queues[i] = make(chan RevisionEvent, options.QueueSize)
	}
	return &Dispatcher{
		producer: producer,
		topic:    topic,
		queues:   queues,
		options:  options,
		logger:   logger,
	}
}

// New returns a Kafka dispatcher, or a NopDispatcher if Kafka is disabled.
func New(kafka settings.KafkaSettings, logger *zap.SugaredLogger) (Publisher, error) {
	if !kafka.Enabled {
		return NopDispatcher{}, nil
	}
	if len(kafka.Brokers) == 0 || kafka.Topic == "" {
		return nil, errors.New("kafka is enabled but brokers or topic are missing")
	}

	config := sarama.NewConfig()
	// SyncProducer needs Return.Successes
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	if kafka.ClientID != "" {
		config.ClientID = kafka.ClientID
	}
	producer, err := sarama.NewSyncProducer(kafka.Brokers, config)
	if err != nil {
		return nil, err
	}
	logger.Infof("publishing revisions to kafka topic %s on %v", kafka.Topic, kafka.Brokers)
	return NewDispatcher(producer, kafka.Topic, Options{
		QueueSize:  kafka.QueueSize,
		Workers:    kafka.Workers,
		MaxRetries: kafka.MaxRetries,
	}, logger), nil
}

func (d *Dispatcher) queueFor(padID string) chan RevisionEvent {
	h := fnv.New32a()
	_, _ = h.Write([]byte(padID))
	return d.queues[h.Sum32()%uint32(len(d.queues))]
}

// OnRevision queues the revision. It never blocks.
func (d *Dispatcher) OnRevision(revision pad.Revision) {
	d.Publish(newRevisionEvent(revision))
}

// Publish queues event and reports whether there was room for it.
func (d *Dispatcher) Publish(event RevisionEvent) bool {
	select {
	case d.queueFor(event.PadID) <- event:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warnf("kafka queue is full, dropping revision %d of pad %s", event.Rev, event.PadID)
		return false
	}
}

// Dropped returns the number of events that were never delivered.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run sends queued events until ctx is done and closes the producer.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer func() {
		if err := d.producer.Close(); err != nil {
			d.logger.Errorf("error closing kafka producer: %v", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	for i, queue := range d.queues {
		workerID := i
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case event := <-queue:
					d.sendWithRetry(ctx, workerID, event)
				}
			}
		})
	}
	return g.Wait()
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, workerID int, event RevisionEvent) {
	for attempt := 0; ; attempt++ {
		err := d.sendOnce(event)
		if err == nil {
			return
		}
		if attempt == d.options.MaxRetries {
			d.dropped.Add(1)
			d.logger.Errorf("kafka send failed, dropping revision %d of pad %s (worker %d): %v",
				event.Rev, event.PadID, workerID, err)
			return
		}

		backoff := d.options.BaseBackoff * time.Duration(1<<attempt)
		if backoff > d.options.MaxBackoff {
			backoff = d.options.MaxBackoff
		}
		select {
		case <-ctx.Done():
			d.dropped.Add(1)
			return
		case <-time.After(backoff):
		}
	}
}

func (d *Dispatcher) sendOnce(event RevisionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, _, err = d.producer.SendMessage(&sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(event.PadID),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

// NopDispatcher discards every revision.
type NopDispatcher struct{}

func (NopDispatcher) OnRevision(pad.Revision) {}

func (NopDispatcher) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
