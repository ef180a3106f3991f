// Package worker provides an asynchronous worker pool for persisting finished
// chat turns using the provided storage.Driver and announcing them on the
// provided eventstream.Publisher.
//
// The pool decouples storage from the relay's streaming hot path so that a slow
// database never stalls a client's token stream.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/upbeatlab/chatrelay/pkg/eventstream"
	"github.com/upbeatlab/chatrelay/pkg/logger"
	"github.com/upbeatlab/chatrelay/pkg/metrics"
	"github.com/upbeatlab/chatrelay/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 30 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Transcript *storage.Transcript
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting transcripts.
	Driver storage.Driver

	// Publisher is the optional event stream turns are announced on after
	// they are stored.
	Publisher eventstream.Publisher

	// Source identifies this relay on published events.
	Source eventstream.EventSource

	// Metrics is optional.
	Metrics *metrics.Metrics

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds storing and publishing one job (defaults to 30s).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup

	// mu guards closed so Enqueue never sends on a closed queue.
	mu     sync.RWMutex
	closed bool

	logger *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Transcript == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.config.Metrics.TranscriptDropped()
		p.logger.Warn("transcript not queued, pool closed",
			"transcript_id", job.Transcript.ID,
			"conversation_id", job.Transcript.ConversationID,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("transcript queued",
			"transcript_id", job.Transcript.ID,
			"conversation_id", job.Transcript.ConversationID,
		)
		return true
	default:
		p.config.Metrics.TranscriptDropped()
		p.logger.Error("transcript not queued, queue full, job dropped",
			"transcript_id", job.Transcript.ID,
			"conversation_id", job.Transcript.ConversationID,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
// Close is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores the transcript and, once stored, publishes it. A turn that
// could not be stored is never announced.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	t := job.Transcript
	if err := p.config.Driver.Put(ctx, t); err != nil {
		p.config.Metrics.TranscriptFailed()
		p.logger.Error("transcript storage failed",
			"transcript_id", t.ID,
			"conversation_id", t.ConversationID,
			"error", err,
		)
		return
	}

	p.logger.Info("transcript stored",
		"transcript_id", t.ID,
		"conversation_id", t.ConversationID,
		"outcome", t.Outcome,
	)

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewTurnCompletedEvent(p.config.Source, t)
	if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
		p.logger.Warn("failed to publish turn event",
			"transcript_id", t.ID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}
