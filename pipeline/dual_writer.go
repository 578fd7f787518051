package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// DualWriter records every batch in two sinks, primary first.
type DualWriter struct {
	primary   Sink
	secondary Sink
	mu        sync.Mutex
}

// NewDualWriter fans writes out to primary and secondary.
func NewDualWriter(primary, secondary Sink) (*DualWriter, error) {
	if primary == nil || secondary == nil {
		return nil, fmt.Errorf("dual writer needs two sinks")
	}
	return &DualWriter{primary: primary, secondary: secondary}, nil
}

type batchStager interface {
	stage(urls []string) (*stagedBatch, error)
}

type undoableWriter interface {
	writeUndoable(urls []string) (func() error, error)
}

// Write records urls in both sinks or in neither. When primary is transactional
// its batch commits only after secondary accepted the same batch; otherwise a
// batch rejected by primary never reaches secondary.
func (dw *DualWriter) Write(urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	dw.mu.Lock()
	defer dw.mu.Unlock()

	if stager, ok := dw.primary.(batchStager); ok {
		return dw.writeStaged(stager, urls)
	}

	if err := dw.primary.Write(urls); err != nil {
		return fmt.Errorf("%s write failed: %w", dw.primary.Location(), err)
	}
	if err := dw.secondary.Write(urls); err != nil {
		return fmt.Errorf("%s write failed: %w", dw.secondary.Location(), err)
	}
	return nil
}

func (dw *DualWriter) writeStaged(stager batchStager, urls []string) error {
	batch, err := stager.stage(urls)
	if err != nil {
		return fmt.Errorf("%s write failed: %w", dw.primary.Location(), err)
	}

	undo := func() error { return nil }
	if uw, ok := dw.secondary.(undoableWriter); ok {
		undo, err = uw.writeUndoable(urls)
	} else {
		err = dw.secondary.Write(urls)
	}
	if err != nil {
		err = fmt.Errorf("%s write failed: %w", dw.secondary.Location(), err)
		if rbErr := batch.rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	if err := batch.commit(); err != nil {
		err = fmt.Errorf("%s write failed: %w", dw.primary.Location(), err)
		if undoErr := undo(); undoErr != nil {
			return errors.Join(err, undoErr)
		}
		return err
	}
	return nil
}

// Location reports both locations, primary first.
func (dw *DualWriter) Location() string {
	return dw.primary.Location() + " + " + dw.secondary.Location()
}

// Close closes both sinks and joins their errors.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%s close failed: %w", dw.primary.Location(), err))
	}
	if err := dw.secondary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%s close failed: %w", dw.secondary.Location(), err))
	}
	return errors.Join(errs...)
}
