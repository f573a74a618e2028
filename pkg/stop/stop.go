// Package stop implements a pattern for shutting down a group of processes.
package stop

import (
	"sync"
)

// Channel is used to return zero or more errors asynchronously. Call Done()
// once to pass errors to the Channel.
type Channel chan []error

// Result is a receive-only version of Channel. Call Wait() once to receive
// any returned errors.
type Result <-chan []error

// Done adds the non-nil errors in errs to the Channel and closes it,
// indicating the caller has finished stopping. It must be called exactly
// once.
func (ch Channel) Done(errs ...error) {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	if len(nonNil) > 0 {
		ch <- nonNil
	}
	close(ch)
}

// Result converts a Channel to a Result.
func (ch Channel) Result() Result {
	return Result((<-chan []error)(ch))
}

// Wait blocks until Done() is called on the underlying Channel and returns
// any errors. It should be called exactly once.
func (r Result) Wait() []error {
	return <-r
}

// AlreadyStopped is a closed Result for things that have nothing left to
// stop.
var AlreadyStopped Result

func init() {
	ch := make(Channel)
	close(ch)
	AlreadyStopped = ch.Result()
}

// Stopper is an interface that allows a clean shutdown.
type Stopper interface {
	// Stop returns immediately and performs the shutdown in a separate
	// goroutine. The returned Result yields the errors of the shutdown,
	// if any, once it has finished.
	Stop() Result
}

// Func is a function that can be used to provide a clean shutdown.
type Func func() Result

// Group is a collection of Stoppers that can be stopped all at once.
type Group struct {
	mu    sync.Mutex
	funcs []Func
}

// NewGroup allocates a new Group.
func NewGroup() *Group {
	return &Group{}
}

// Add appends a Stopper to the Group.
func (g *Group) Add(s Stopper) {
	g.AddFunc(s.Stop)
}

// AddFunc appends a Func to the Group.
func (g *Group) AddFunc(f Func) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.funcs = append(g.funcs, f)
}

// Stop concurrently stops all members of the Group, in the order they were
// added, and returns every error they report.
func (g *Group) Stop() Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	results := make([]Result, 0, len(g.funcs))
	for _, f := range g.funcs {
		r := f()
		if r == nil {
			panic("stop: received a nil Result from Stop")
		}
		results = append(results, r)
	}

	done := make(Channel)
	go func() {
		var errs []error
		for _, r := range results {
			errs = append(errs, r.Wait()...)
		}
		done.Done(errs...)
	}()

	return done.Result()
}
