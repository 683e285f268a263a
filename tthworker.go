package dc

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/udoprog/go-adc/tiger"
)

// TTHResult is the outcome of one hashing job. Err is set when the file
// could not be read or hashed; it is reported here and never surfaces
// inside a connection's read loop.
type TTHResult struct {
	Path string
	Root tiger.Hash
	Tree *tiger.Tree
	Err  error
}

// TTHWorker hashes files on a bounded pool of goroutines so callers
// driving a connection never block on file I/O. Results are delivered
// through the callback, one per submitted path, from a worker
// goroutine; the callback forwards them to whatever loop owns the
// connection.
type TTHWorker struct {
	jobs   chan string
	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewTTHWorker starts a pool of n hashing goroutines (minimum 1)
// delivering results to fn.
func NewTTHWorker(n int, fn func(TTHResult)) *TTHWorker {
	if n < 1 {
		n = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	w := &TTHWorker{
		jobs:   make(chan string, n),
		group:  group,
		cancel: cancel,
	}
	for i := 0; i < n; i++ {
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case path, ok := <-w.jobs:
					if !ok {
						return nil
					}
					fn(hashFile(path))
				}
			}
		})
	}
	return w
}

// Submit queues path for hashing; it blocks only when every worker is
// busy and the job buffer is full.
func (w *TTHWorker) Submit(path string) {
	w.jobs <- path
}

// Close drains queued jobs, stops the workers, and waits for them.
func (w *TTHWorker) Close() error {
	close(w.jobs)
	err := w.group.Wait()
	w.cancel()
	return err
}

func hashFile(path string) TTHResult {
	f, err := os.Open(path)
	if err != nil {
		return TTHResult{Path: path, Err: err}
	}
	defer f.Close()
	tree, err := tiger.BuildTree(f)
	if err != nil {
		return TTHResult{Path: path, Err: err}
	}
	return TTHResult{Path: path, Root: tree.RootHash(), Tree: tree}
}
