package session

import "time"

// DefaultTickInterval is how often live statistics are refreshed.
const DefaultTickInterval = 100 * time.Millisecond

// ticker runs fn on a fixed interval until stopped.
type ticker struct {
	stop chan struct{}
	done chan struct{}
}

func startTicker(every time.Duration, fn func()) *ticker {
	t := &ticker{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		tk := time.NewTicker(every)
		defer tk.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-tk.C:
				fn()
			}
		}
	}()
	return t
}

// signal asks the goroutine to exit. Safe to call while holding the session
// lock.
func (t *ticker) signal() {
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
}

// wait blocks until the goroutine exited. Never call it from the tick
// callback or with the session lock held.
func (t *ticker) wait() {
	<-t.done
}
