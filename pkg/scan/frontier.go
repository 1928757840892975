package scan

import "sync"

// frontier is the shared queue of directories waiting to be read. It
// closes itself once every queued directory has been processed.
type frontier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []dirItem
	head    int
	pending int
	closed  bool
}

func newFrontier() *frontier {
	f := &frontier{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *frontier) push(it dirItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.items = append(f.items, it)
	f.pending++
	f.cond.Signal()
}

// pop blocks until a directory is available or the walk is over.
func (f *frontier) pop() (dirItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.head == len(f.items) && !f.closed {
		f.cond.Wait()
	}
	if f.closed {
		return dirItem{}, false
	}
	it := f.items[f.head]
	f.items[f.head] = dirItem{}
	f.head++
	if f.head == len(f.items) {
		f.items = f.items[:0]
		f.head = 0
	}
	return it, true
}

// done marks one popped directory as fully processed.
func (f *frontier) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending--
	if f.pending == 0 {
		f.closed = true
		f.cond.Broadcast()
	}
}

func (f *frontier) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}
