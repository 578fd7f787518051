// Package pipeline delivers extracted URLs to storage without exceeding a run's target count.
package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineClosed is returned when Process is called after the target is reached
	// or after a write failed.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// Pipeline forwards batches to a Writer and truncates them at the target count.
// It is driven by a single goroutine and is not safe for concurrent use.
type Pipeline struct {
	writer  Writer
	target  int
	written int
	batches int
	closed  bool
	err     error
}

// NewPipeline builds a pipeline that accepts at most target URLs.
func NewPipeline(writer Writer, target int) *Pipeline {
	return &Pipeline{
		writer: writer,
		target: target,
		closed: target <= 0,
	}
}

// Process writes urls, or only the leading part that still fits under the target,
// and returns how many were written. Empty input does not reach the writer.
func (p *Pipeline) Process(urls []string) (int, error) {
	if p.closed {
		return 0, ErrPipelineClosed
	}

	if remaining := p.Remaining(); len(urls) > remaining {
		urls = urls[:remaining]
	}

	if len(urls) > 0 {
		if err := p.writer.Write(urls); err != nil {
			p.closed = true
			p.err = fmt.Errorf("write batch: %w", err)
			return 0, p.err
		}
		p.written += len(urls)
		p.batches++
	}

	if p.written >= p.target {
		p.closed = true
	}
	return len(urls), nil
}

// Written returns the number of URLs handed to the writer so far.
func (p *Pipeline) Written() int {
	return p.written
}

// Remaining returns how many more URLs the pipeline accepts.
func (p *Pipeline) Remaining() int {
	if p.written >= p.target {
		return 0
	}
	return p.target - p.written
}

// Batches returns the number of Write calls made.
func (p *Pipeline) Batches() int {
	return p.batches
}

// Done reports whether the pipeline stopped accepting input.
func (p *Pipeline) Done() bool {
	return p.closed
}

// Err returns the write failure that closed the pipeline, if any.
func (p *Pipeline) Err() error {
	return p.err
}
