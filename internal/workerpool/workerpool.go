// Package workerpool implements spec.md §4.4's worker pool: N independent
// workers consume canonical paths and produce scanned module content.
// Each task's output is the raw material the orchestrator (internal/bundle)
// needs to resolve dependencies and finish the rewrite pass — see
// internal/rewriter's package doc for why the actual substitution (Apply)
// happens in the orchestrator rather than here.
package workerpool

import (
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/bundlex/bundlex/internal/rewriter"
)

// Result is one task's output: (path, source, scanned import sites) on
// success, or a non-nil Err on failure (I/O, invalid UTF-8, malformed
// lexical content). Workers never abort the pool on error — a failing
// task just produces a Result with Err set.
type Result struct {
	Path   string
	Source string
	Sites  []rewriter.ImportSite
	Err    error
}

// Pool runs workerCount goroutines pulling paths off a task queue and
// pushing Results to a shared result channel. Submitting an already
// in-flight or already-completed path is a silent no-op.
type Pool struct {
	tasks   chan string
	results chan Result
	group   *errgroup.Group

	mu   sync.Mutex
	seen map[string]bool
}

// New starts a pool of workerCount goroutines. Channel capacity is sized
// generously (not truly unbounded, but large enough that ordinary module
// graphs never block Submit against a worker population still catching
// up) so the orchestrator's submit-then-receive loop in internal/bundle
// can never deadlock against the pool's own result channel.
func New(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	const capacity = 4096
	p := &Pool{
		tasks:   make(chan string, capacity),
		results: make(chan Result, capacity),
		seen:    map[string]bool{},
	}
	var g errgroup.Group
	p.group = &g
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			p.run()
			return nil
		})
	}
	return p
}

func (p *Pool) run() {
	for path := range p.tasks {
		p.results <- process(path)
	}
}

func process(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Path: path, Err: fmt.Errorf("reading %s: %w", path, err)}
	}
	if !utf8.Valid(data) {
		return Result{Path: path, Err: fmt.Errorf("%s is not valid UTF-8", path)}
	}
	source := string(data)

	sites, err := rewriter.Scan(source)
	if err != nil {
		return Result{Path: path, Source: source, Err: err}
	}
	return Result{Path: path, Source: source, Sites: sites}
}

// Submit enqueues path for processing unless it's already in flight or
// already been submitted before.
func (p *Pool) Submit(path string) {
	p.mu.Lock()
	if p.seen[path] {
		p.mu.Unlock()
		return
	}
	p.seen[path] = true
	p.mu.Unlock()
	p.tasks <- path
}

// Results returns the channel workers publish completed tasks to.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops accepting new tasks, waits for in-flight workers to drain,
// and closes the result channel. The caller must have stopped submitting
// and consumed every result it expects before calling Close.
func (p *Pool) Close() {
	close(p.tasks)
	_ = p.group.Wait()
	close(p.results)
}
