package cache

import "sync"

// rebuildPool is a fixed set of workers draining a bounded task queue.
// Submission never blocks: the caller learns about saturation and decides
// what to do (the logical-expiry path rebuilds synchronously).
type rebuildPool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

func newRebuildPool(workers, queue int) *rebuildPool {
	if workers <= 0 {
		workers = 10
	}
	if queue <= 0 {
		queue = 256
	}
	p := &rebuildPool{tasks: make(chan func(), queue)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

func (p *rebuildPool) TrySubmit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close drains queued tasks and stops the workers.
func (p *rebuildPool) Close() {
	close(p.tasks)
	p.wg.Wait()
}
