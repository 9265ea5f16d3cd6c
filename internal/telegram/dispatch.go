package telegram

import "sync"

// dispatcher runs jobs of the same user in submission order and jobs of different
// users concurrently. A user's goroutine exits once its queue is drained.
type dispatcher struct {
	mu     sync.Mutex
	queues map[int64][]func()
	wg     sync.WaitGroup
}

func newDispatcher() *dispatcher {
	return &dispatcher{queues: make(map[int64][]func())}
}

func (d *dispatcher) Submit(userID int64, job func()) {
	d.mu.Lock()
	queue, running := d.queues[userID]
	d.queues[userID] = append(queue, job)
	d.mu.Unlock()
	if running {
		return
	}

	d.wg.Add(1)
	go d.drain(userID)
}

func (d *dispatcher) drain(userID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		job := queue[0]
		d.queues[userID] = queue[1:]
		d.mu.Unlock()

		job()
	}
}

// Wait blocks until every submitted job has finished.
func (d *dispatcher) Wait() {
	d.wg.Wait()
}
