package worker

import (
	"context"
	"errors"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/upbeatlab/chatrelay/pkg/eventstream"
	"github.com/upbeatlab/chatrelay/pkg/metrics"
	"github.com/upbeatlab/chatrelay/pkg/storage"
	"github.com/upbeatlab/chatrelay/pkg/storage/inmemory"
	testutils "github.com/upbeatlab/chatrelay/pkg/utils/test"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnCompletedEvent
	err    error
}

func (r *recordingPublisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) published() []*eventstream.TurnCompletedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.TurnCompletedEvent(nil), r.events...)
}

// blockingDriver parks every Put until release is closed.
type blockingDriver struct {
	*testutils.MockDriver
	release chan struct{}
}

func (b *blockingDriver) Put(ctx context.Context, t *storage.Transcript) error {
	<-b.release
	return b.MockDriver.Put(ctx, t)
}

var _ = Describe("Worker Pool", func() {
	var (
		wp        *Pool
		driver    *inmemory.Driver
		publisher *recordingPublisher
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		publisher = &recordingPublisher{}

		var err error
		wp, err = NewPool(&Config{
			Driver:    driver,
			Publisher: publisher,
			Source:    eventstream.EventSource{Env: "compose"},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a driver", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(MatchError("worker pool requires a storage driver"))
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			Expect(wp.Enqueue(Job{Transcript: testutils.NewTranscript("user-1", 0, "hi")})).To(BeTrue())
			wp.Close()
		})

		It("rejects jobs without a transcript", func() {
			Expect(wp.Enqueue(Job{})).To(BeFalse())
			wp.Close()
		})

		It("drops jobs once the pool is closed", func() {
			m := metrics.New()
			pool, err := NewPool(&Config{Driver: driver, Metrics: m})
			Expect(err).NotTo(HaveOccurred())
			pool.Close()

			Expect(func() {
				Expect(pool.Enqueue(Job{Transcript: testutils.NewTranscript("late", 0, "x")})).To(BeFalse())
			}).NotTo(Panic())
			Expect(pool.Close).NotTo(Panic())
			wp.Close()

			Expect(testutil.GatherAndCompare(m.Registry, strings.NewReader(`
# HELP relay_transcripts_dropped_total Transcripts dropped because the persistence queue was full or closed
# TYPE relay_transcripts_dropped_total counter
relay_transcripts_dropped_total 1
`), "relay_transcripts_dropped_total")).To(Succeed())
		})
	})

	Context("after draining", func() {
		var first, second *storage.Transcript

		BeforeEach(func() {
			first = testutils.NewTranscript("user-1", 0, "first")
			second = testutils.NewTranscript("user-1", 1, "second")
			Expect(wp.Enqueue(Job{Transcript: first})).To(BeTrue())
			Expect(wp.Enqueue(Job{Transcript: second})).To(BeTrue())

			// Drain the worker pool to ensure storage completes before assertions
			wp.Close()
		})

		It("stores every transcript", func() {
			list, err := driver.ListByConversation(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].Response).To(Equal("first"))
			Expect(list[1].Response).To(Equal("second"))
		})

		It("publishes a turn event per stored transcript", func() {
			events := publisher.published()
			Expect(events).To(HaveLen(2))

			ids := []string{events[0].Turn.ID, events[1].Turn.ID}
			Expect(ids).To(ConsistOf(first.ID, second.ID))
			Expect(events[0].EventType).To(Equal(eventstream.EventTypeTurnCompleted))
			Expect(events[0].Source.Env).To(Equal("compose"))
		})
	})

	It("does not publish turns that failed to store", func() {
		mock := testutils.NewMockDriver()
		mock.PutErr = errors.New("disk full")
		m := metrics.New()

		pool, err := NewPool(&Config{Driver: mock, Publisher: publisher, Metrics: m})
		Expect(err).NotTo(HaveOccurred())
		Expect(pool.Enqueue(Job{Transcript: testutils.NewTranscript("u", 0, "x")})).To(BeTrue())
		pool.Close()
		wp.Close()

		Expect(publisher.published()).To(BeEmpty())
		Expect(testutil.GatherAndCompare(m.Registry, strings.NewReader(`
# HELP relay_transcripts_failed_total Transcripts the storage driver failed to persist
# TYPE relay_transcripts_failed_total counter
relay_transcripts_failed_total 1
`), "relay_transcripts_failed_total")).To(Succeed())
	})

	It("keeps the transcript when publishing fails", func() {
		publisher.err = errors.New("broker down")
		t := testutils.NewTranscript("user-2", 0, "kept")
		Expect(wp.Enqueue(Job{Transcript: t})).To(BeTrue())
		wp.Close()

		got, err := driver.Get(ctx, t.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Response).To(Equal("kept"))
	})

	It("drops jobs when the queue is full", func() {
		blocked := &blockingDriver{MockDriver: testutils.NewMockDriver(), release: make(chan struct{})}
		m := metrics.New()

		pool, err := NewPool(&Config{Driver: blocked, Metrics: m, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		// The first job is taken by the single worker and parks in Put, the
		// next fills the queue, so a later one has nowhere to go.
		Expect(pool.Enqueue(Job{Transcript: testutils.NewTranscript("u", 0, "a")})).To(BeTrue())
		Eventually(func() bool {
			return pool.Enqueue(Job{Transcript: testutils.NewTranscript("u", 1, "b")})
		}).Should(BeFalse())

		close(blocked.release)
		pool.Close()
		wp.Close()

		Expect(blocked.StoredCount()).To(BeElementOf(1, 2))
		Expect(testutil.GatherAndCompare(m.Registry, strings.NewReader(`
# HELP relay_transcripts_dropped_total Transcripts dropped because the persistence queue was full or closed
# TYPE relay_transcripts_dropped_total counter
relay_transcripts_dropped_total 1
`), "relay_transcripts_dropped_total")).To(Succeed())
	})
})
