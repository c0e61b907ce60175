// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/tilery/internal/domain"
)

// PyramidService is the primary port for driving a tile pyramid run.
//
// The driver and the pipeline are two threads of control: Start launches
// the pipeline goroutine, Stop requests a cooperative stop and joins it.
// When the planned tile count exceeds the confirmation threshold the
// pipeline suspends until the driver calls exactly one of
// ConfirmContinue or ConfirmStop; leaving the gate unresolved suspends
// the pipeline forever.
type PyramidService interface {
	// Start validates the request and launches the pipeline. It returns
	// immediately; a validation failure is reported synchronously and
	// nothing is started.
	Start(ctx context.Context) error

	// Stop requests a cooperative stop and blocks until the pipeline has
	// fully stopped and finalized its sink. Stop never interrupts an
	// in-flight single-tile render.
	Stop()

	// ConfirmContinue resolves the threshold gate with a go-ahead.
	ConfirmContinue()

	// ConfirmStop resolves the threshold gate with a stop. Nothing is
	// rendered.
	ConfirmStop()

	// Wait blocks until the run terminates and returns its result.
	Wait() Result
}

// Result is the terminal report of a pipeline run.
type Result struct {
	Outcome       domain.Outcome
	TilesPlanned  int
	TilesRendered int
	Err           error // nil unless the run failed
}
