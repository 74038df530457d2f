package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed set of workers draining a shared task
// channel under a tomb's lifecycle.
type WorkerPool struct {
	n     int
	tasks chan any
}

func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		n:     size,
		tasks: make(chan any, taskChanSize),
	}
}

// Setup spawns the workers on the tomb. Workers exit when the tomb
// dies or work returns an error.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	for i := 0; i < pool.n; i++ {
		id := i
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// AddTask enqueues a task for the next free worker.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}
