package editor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrPoolStopped = errors.New("render pool stopped")

// Job is one render request.
type Job struct {
	Source   string
	Crop     CropArea
	Rotation float64
	Filter   Filter

	result chan Result
}

// Result carries a finished render.
type Result struct {
	PNG      []byte
	Err      error
	Duration time.Duration
}

// Stats is a point-in-time view of the pool counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Capacity  int   `json:"capacity"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Pool runs renders on a fixed set of workers so a burst of requests cannot
// allocate unbounded surfaces at once.
type Pool struct {
	workers int
	raster  Rasterizer
	jobs    chan Job
	quit    chan struct{}
	wg      sync.WaitGroup
	start   sync.Once
	stop    sync.Once

	completed atomic.Int64
	failed    atomic.Int64
}

func NewPool(workers, queue int, r Rasterizer) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	return &Pool{
		workers: workers,
		raster:  r,
		jobs:    make(chan Job, queue),
		quit:    make(chan struct{}),
	}
}

// Start launches the workers. Calls after the first are ignored.
func (p *Pool) Start() {
	p.start.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
		log.Debug().Int("workers", p.workers).Int("queue", cap(p.jobs)).Msg("render pool started")
	})
}

// Stop signals the workers and waits for in-flight renders to finish.
// Queued jobs that were not picked up fail with ErrPoolStopped.
func (p *Pool) Stop() {
	p.stop.Do(func() {
		close(p.quit)
		p.wg.Wait()
		log.Debug().Msg("render pool stopped")
	})
}

// SubmitAndWait queues job and blocks until it is rendered, ctx is done or
// the pool stops.
func (p *Pool) SubmitAndWait(ctx context.Context, job Job) ([]byte, error) {
	job.result = make(chan Result, 1)

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrPoolStopped
	}

	select {
	case res := <-job.result:
		return res.PNG, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrPoolStopped
	}
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Queued:    len(p.jobs),
		Capacity:  cap(p.jobs),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case job := <-p.jobs:
			started := time.Now()
			png, err := p.raster.Render(job.Source, job.Crop, job.Rotation, job.Filter)
			res := Result{PNG: png, Err: err, Duration: time.Since(started)}
			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}
			log.Debug().Int("worker", id).Dur("took", res.Duration).Err(err).Msg("render finished")
			// result is buffered, so an abandoned waiter never blocks the worker
			job.result <- res
		}
	}
}
