package scan

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
)

var (
	ErrInputClosed = errors.New("scanner input closed")
	ErrRunning     = errors.New("scanner already running")
)

// LinePipeline reads one barcode per line from a keyboard-wedge scanner (or any
// reader). Lines that arrive while the pipeline is stopped wait for the next Start.
type LinePipeline struct {
	r io.Reader

	mu      sync.Mutex
	cond    *sync.Cond
	handler DecodeFunc
	running bool
	paused  chan struct{} // closed by Stop, one per run
	closed  bool
	err     error
	once    sync.Once
	done    chan struct{}
}

// NewLinePipeline reads from r.
func NewLinePipeline(r io.Reader) *LinePipeline {
	p := &LinePipeline{r: r, done: make(chan struct{})}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start delivers lines to onDecode until Stop or until ctx is done.
func (p *LinePipeline) Start(ctx context.Context, onDecode DecodeFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrInputClosed
	}
	if p.running {
		return ErrRunning
	}
	p.handler = onDecode
	p.running = true
	paused := make(chan struct{})
	p.paused = paused
	p.cond.Broadcast()

	p.once.Do(func() { go p.readLoop() })
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				p.stopRun(paused)
			case <-paused:
			case <-p.done:
			}
		}()
	}
	return nil
}

// Stop pauses delivery. The next unread line is kept for a later Start.
func (p *LinePipeline) Stop() error {
	p.mu.Lock()
	p.pauseLocked()
	p.mu.Unlock()
	return nil
}

// stopRun stops only if the run that owns paused is still current.
func (p *LinePipeline) stopRun(paused chan struct{}) {
	p.mu.Lock()
	if p.paused == paused {
		p.pauseLocked()
	}
	p.mu.Unlock()
}

func (p *LinePipeline) pauseLocked() {
	p.running = false
	p.handler = nil
	if p.paused != nil {
		close(p.paused)
		p.paused = nil
	}
}

// Done is closed once the input is exhausted.
func (p *LinePipeline) Done() <-chan struct{} { return p.done }

// Err returns the read error that ended the input, if any.
func (p *LinePipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *LinePipeline) readLoop() {
	sc := bufio.NewScanner(p.r)
	for sc.Scan() {
		line := sc.Text()

		p.mu.Lock()
		for !p.running {
			p.cond.Wait()
		}
		h := p.handler
		p.mu.Unlock()

		h(line)
	}

	p.mu.Lock()
	p.closed = true
	p.running = false
	p.err = sc.Err()
	p.mu.Unlock()
	close(p.done)
}
