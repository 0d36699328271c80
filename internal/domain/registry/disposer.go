package registry

import "sync"

// Disposer cancels a subscription. It is safe to call more than once.
type Disposer func()

// Noop is returned where nothing was subscribed.
var Noop Disposer = func() {}

func newDisposer(fn func()) Disposer {
	var once sync.Once
	return func() { once.Do(fn) }
}

// Combine returns one disposer releasing all of ds.
func Combine(ds ...Disposer) Disposer {
	return newDisposer(func() {
		for _, d := range ds {
			if d != nil {
				d()
			}
		}
	})
}
