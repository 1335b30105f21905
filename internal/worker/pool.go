package worker

import (
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Pool runs fire-and-forget tasks on a fixed set of workers. Matching
// attempts are submitted here so request creation never blocks on matching.
// A panicking task is logged and abandoned; the owning request's timeout
// still drives it to a terminal state.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	once   sync.Once
	logger *zap.Logger
}

// NewPool starts size workers.
func NewPool(size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		tasks:  make(chan func(), size*32),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Submit enqueues a task. Blocks only when the queue is saturated.
func (p *Pool) Submit(task func()) {
	p.tasks <- task
}

// Stop drains the queue and waits for in-flight tasks.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.execute(task)
	}
}

func (p *Pool) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	task()
}
