package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/ether/easysync/lib/pad"
	"github.com/ether/easysync/lib/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testOptions() Options {
	return Options{
		QueueSize:   10,
		Workers:     2,
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

// runDispatcher runs d until the returned stop function is called.
func runDispatcher(t *testing.T, d *Dispatcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, d.Run(ctx))
	}()
	return func() {
		cancel()
		<-done
	}
}

func eventChecker(events chan<- RevisionEvent) mocks.ValueChecker {
	return func(val []byte) error {
		var event RevisionEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		events <- event
		return nil
	}
}

func waitForEvent(t *testing.T, events <-chan RevisionEvent) RevisionEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event was sent")
	}
	return RevisionEvent{}
}

func TestDispatcherSendsRevisions(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	events := make(chan RevisionEvent, 1)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(eventChecker(events))

	d := NewDispatcher(producer, "revisions", testOptions(), zap.NewNop().Sugar())
	stop := runDispatcher(t, d)
	defer stop()

	d.OnRevision(pad.Revision{PadID: "test", Rev: 3, Changeset: "Z:1>1+1$a", Author: "a.1", Timestamp: 42})

	assert.Equal(t, RevisionEvent{PadID: "test", Rev: 3, Changeset: "Z:1>1+1$a", Author: "a.1", Timestamp: 42},
		waitForEvent(t, events))
	assert.Equal(t, int64(0), d.Dropped())
}

func TestDispatcherRetriesFailedSends(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	events := make(chan RevisionEvent, 1)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(eventChecker(events))

	d := NewDispatcher(producer, "revisions", testOptions(), zap.NewNop().Sugar())
	stop := runDispatcher(t, d)
	defer stop()

	require.True(t, d.Publish(RevisionEvent{PadID: "test", Rev: 1}))
	assert.Equal(t, 1, waitForEvent(t, events).Rev)
	assert.Equal(t, int64(0), d.Dropped())
}

func TestDispatcherDropsAfterMaxRetries(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	options := testOptions()
	options.MaxRetries = 0
	d := NewDispatcher(producer, "revisions", options, zap.NewNop().Sugar())
	stop := runDispatcher(t, d)
	defer stop()

	require.True(t, d.Publish(RevisionEvent{PadID: "test", Rev: 1}))
	assert.Eventually(t, func() bool {
		return d.Dropped() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcherKeepsOrderPerPad(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	events := make(chan RevisionEvent, 5)
	for i := 0; i < 5; i++ {
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(eventChecker(events))
	}

	d := NewDispatcher(producer, "revisions", testOptions(), zap.NewNop().Sugar())
	for rev := 0; rev < 5; rev++ {
		require.True(t, d.Publish(RevisionEvent{PadID: "ordered", Rev: rev}))
	}
	stop := runDispatcher(t, d)
	defer stop()

	for rev := 0; rev < 5; rev++ {
		assert.Equal(t, rev, waitForEvent(t, events).Rev)
	}
}

func TestDispatcherDropsWhenQueueIsFull(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	options := testOptions()
	options.QueueSize = 1
	options.Workers = 1
	d := NewDispatcher(producer, "revisions", options, zap.NewNop().Sugar())

	assert.True(t, d.Publish(RevisionEvent{PadID: "test", Rev: 0}))
	assert.False(t, d.Publish(RevisionEvent{PadID: "test", Rev: 1}))
	assert.Equal(t, int64(1), d.Dropped())
	require.NoError(t, producer.Close())
}

func TestNewWithoutKafka(t *testing.T) {
	publisher, err := New(settings.KafkaSettings{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.IsType(t, NopDispatcher{}, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	publisher.OnRevision(pad.Revision{PadID: "test"})
	assert.NoError(t, publisher.Run(ctx))
}

func TestNewRejectsIncompleteKafkaSettings(t *testing.T) {
	_, err := New(settings.KafkaSettings{Enabled: true, Topic: "revisions"}, zap.NewNop().Sugar())
	assert.Error(t, err)
}
