// Package scan connects a barcode source to the patient lookup.
package scan

import (
	"context"
	"fmt"
	"sync"

	"alcyxob/physiotrack/internal/domain"

	"go.uber.org/zap"
)

// DecodeFunc receives raw decoded text. The text is untrusted and may carry
// whitespace or line breaks added by the scanner.
type DecodeFunc func(text string)

// Pipeline is a source of decoded barcodes with a start/stop lifecycle.
type Pipeline interface {
	Start(ctx context.Context, onDecode DecodeFunc) error
	Stop() error
}

// DeviceError reports that the scanner could not be opened or started.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("scanner %s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Gate turns a continuous decode stream into a single patient id.
// The first non-blank decode stops the pipeline and only then reaches onResult,
// so one physical code can't trigger twice.
type Gate struct {
	pipeline Pipeline
	onResult func(patientID string)
	log      *zap.Logger

	mu      sync.Mutex
	fired   bool
	stopped bool
}

// NewGate wires pipeline to onResult.
func NewGate(pipeline Pipeline, onResult func(patientID string), log *zap.Logger) *Gate {
	return &Gate{pipeline: pipeline, onResult: onResult, log: log}
}

// Start opens the pipeline. A failure is returned as *DeviceError and is not retried.
func (g *Gate) Start(ctx context.Context) error {
	if err := g.pipeline.Start(ctx, g.handle); err != nil {
		g.log.Warn("Scanner failed to start", zap.Error(err))
		return &DeviceError{Op: "start", Err: err}
	}
	return nil
}

func (g *Gate) handle(text string) {
	id := domain.NormalizePatientID(text)
	if id == "" {
		return
	}

	g.mu.Lock()
	if g.fired || g.stopped {
		g.mu.Unlock()
		return
	}
	g.fired = true
	g.stopped = true
	g.mu.Unlock()

	if err := g.pipeline.Stop(); err != nil {
		g.log.Warn("Failed to stop scanner after decode", zap.Error(err))
	}
	g.log.Debug("Barcode decoded", zap.String("patientId", id))
	g.onResult(id)
}

// Stop tears the gate down. Decodes arriving afterwards are ignored.
// Calling it more than once is safe.
func (g *Gate) Stop() error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return nil
	}
	g.stopped = true
	g.mu.Unlock()
	return g.pipeline.Stop()
}

// Fired reports whether a result has been delivered.
func (g *Gate) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}
