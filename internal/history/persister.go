package history

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultSaveTimeout = 5 * time.Second
	defaultQueueSize   = 16
)

// PersisterConfig configures a Persister.
type PersisterConfig struct {
	Saver       Saver
	SaveTimeout time.Duration
	QueueSize   int
	Logger      *zerolog.Logger
}

// Persister writes snapshots to a Saver from a single background goroutine,
// in the order they were scheduled. Scheduling never blocks: when the queue
// is full the oldest pending snapshot is discarded, since every snapshot is
// complete and a newer one supersedes it. Save failures are logged and not
// retried.
type Persister struct {
	saver   Saver
	timeout time.Duration
	queue   chan Snapshot
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPersister creates a Persister and starts its background writer.
func NewPersister(cfg PersisterConfig) *Persister {
	timeout := cfg.SaveTimeout
	if timeout <= 0 {
		timeout = defaultSaveTimeout
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "persister").Logger()
	}

	p := &Persister{
		saver:   cfg.Saver,
		timeout: timeout,
		queue:   make(chan Snapshot, size),
		logger:  logger,
	}

	p.wg.Add(1)
	go p.run()
	return p
}

// Schedule queues s for saving. It is a no-op after Close.
func (p *Persister) Schedule(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	for {
		select {
		case p.queue <- s:
			return
		default:
		}

		select {
		case <-p.queue:
			p.logger.Debug().Msg("Persist queue full, dropping superseded snapshot")
		default:
		}
	}
}

// Close stops accepting snapshots and waits until the queued ones are saved
// or ctx is done.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn().Msg("Persister close timed out with snapshots still pending")
		return ctx.Err()
	}
}

func (p *Persister) run() {
	defer p.wg.Done()

	for snap := range p.queue {
		p.save(snap)
	}
}

func (p *Persister) save(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.saver.Save(ctx, snap); err != nil {
		p.logger.Error().Err(err).Msg("Error persisting messages")
		return
	}
	p.logger.Debug().Int("rooms", len(snap)).Msg("Snapshot persisted")
}
