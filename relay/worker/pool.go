// Package worker provides an asynchronous worker pool that publishes completed
// conversation turns to an eventstream.Publisher.
//
// The pool decouples event publishing from the reply path so a slow or
// unavailable broker never delays a chat reply.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/tgrelay/pkg/eventstream"
	"github.com/papercomputeco/tgrelay/pkg/logger"
)

var (
	defaultNumWorkers     uint = 2
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 15 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Event *eventstream.TurnCompletedEvent
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every event. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single publish (defaults to 15s).
	PublishTimeout time.Duration

	// OnPublish is called after each publish attempt with its result.
	OnPublish func(error)

	Logger *slog.Logger
}

// Pool publishes turn events asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
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
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Event == nil {
		p.logger.Warn("job not queued, missing event")
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"event_id", job.Event.EventID,
			"conversation_id", job.Event.ConversationID,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"event_id", job.Event.EventID,
			"conversation_id", job.Event.ConversationID,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the poller has stopped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("event worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	err := p.config.Publisher.PublishTurn(ctx, job.Event)
	if p.config.OnPublish != nil {
		p.config.OnPublish(err)
	}
	if err != nil {
		p.logger.Error("turn event publish failed",
			"event_id", job.Event.EventID,
			"conversation_id", job.Event.ConversationID,
			"error", err,
		)
		return
	}

	p.logger.Debug("turn event published",
		"event_id", job.Event.EventID,
		"conversation_id", job.Event.ConversationID,
	)
}
