package input

import "sync"

// Pool is a bounded worker pool for fire-and-forget click tasks. Submit
// refuses work beyond the bound instead of queueing it: a click that cannot
// run now is worthless next frame.
type Pool struct {
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewPool creates a pool running at most size tasks concurrently.
func NewPool(size int) *Pool {
	return &Pool{slots: make(chan struct{}, size)}
}

// Submit runs fn on its own goroutine if a slot is free. Returns false when
// the pool is full.
func (p *Pool) Submit(fn func()) bool {
	select {
	case p.slots <- struct{}{}:
	default:
		return false
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.slots
			p.wg.Done()
		}()
		fn()
	}()
	return true
}

// Join waits for all in-flight tasks to finish.
func (p *Pool) Join() {
	p.wg.Wait()
}
