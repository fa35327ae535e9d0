package workerpool

import (
	"sync"

	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// Task is a unit of work run by a pool worker
type Task func()

// Pool is a fixed set of workers, each with its own queue.
// Tasks submitted with the same key always land on the same worker,
// so they run one at a time in submission order.
type Pool struct {
	queues []chan Task
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts workers goroutines, each buffering up to queueSize tasks
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{queues: make([]chan Task, workers)}

	for i := range p.queues {
		p.queues[i] = make(chan Task, queueSize)
		p.wg.Add(1)
		go p.worker(i, p.queues[i])
	}

	logger.Log.Info("Worker pool started",
		zap.Int("workers", workers),
		zap.Int("queue_size", queueSize),
	)

	return p
}

func (p *Pool) worker(id int, queue <-chan Task) {
	defer p.wg.Done()

	for task := range queue {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Task panic recovered",
				zap.Int("worker_id", id),
				zap.Any("panic", r),
			)
		}
	}()
	task()
}

// TrySubmit queues task on the worker owning key. It never blocks:
// false means the pool is shut down or that worker's queue is full.
func (p *Pool) TrySubmit(key string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.queues[p.shard(key)] <- task:
		return true
	default:
		return false
	}
}

func (p *Pool) shard(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(p.queues)))
}

// Shutdown stops accepting tasks, drains what is queued and waits for the workers
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
	logger.Log.Info("Worker pool shutdown completed")
}
