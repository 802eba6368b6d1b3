package server

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// taskChanSize bounds the number of accepted connections waiting for a
// free worker before Accept blocks.
const taskChanSize = 100

// WorkerFunc processes one task; a non-nil error is treated as fatal to
// the whole tomb, not just this task.
type WorkerFunc = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed number of goroutines pulling tasks off a
// shared channel, restarting a worker slot whenever one exits.
type WorkerPool struct {
	n     int
	tasks chan any
	work  WorkerFunc
}

func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

// AddTask enqueues a task for the next free worker.
func (p *WorkerPool) AddTask(task any) {
	p.tasks <- task
}

// Setup keeps the pool staffed with n live workers until t dies,
// relaunching a replacement whenever one returns. slots is a buffered
// semaphore pre-loaded with n tokens; Setup blocks on it between
// launches instead of polling, so a fully staffed pool parks on the
// select rather than spinning a CPU core.
func (p *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunc) {
	p.work = work
	log.Info().Int("workers", p.n).Msg("starting worker pool")
	slots := make(chan struct{}, p.n)
	for i := 0; i < p.n; i++ {
		slots <- struct{}{}
	}
	for {
		select {
		case <-t.Dying():
			return
		case <-slots:
			t.Go(func() error {
				err := p.worker(t)
				slots <- struct{}{}
				return err
			})
		}
	}
}

func (p *WorkerPool) worker(t *tomb.Tomb) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-p.tasks:
		if err := p.work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting on error")
			return err
		}
	}
	return nil
}
