package main

import (
	"fmt"
	"time"

	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/jobrunner/tilery/internal/app"
	"github.com/jobrunner/tilery/internal/domain"
)

// consoleObserver drives the terminal progress bar and answers the
// large-run confirmation gate.
type consoleObserver struct {
	app         *app.App
	autoConfirm bool
	bar         *pb.ProgressBar
}

func newConsoleObserver(a *app.App, autoConfirm bool) *consoleObserver {
	return &consoleObserver{app: a, autoConfirm: autoConfirm}
}

// RangeChanged implements output.PipelineObserver.
func (o *consoleObserver) RangeChanged(total int) {
	if total == 0 {
		return
	}
	o.bar = pb.New64(int64(total)).Prefix("Tiles: ")
	o.bar.SetRefreshRate(time.Second)
	o.bar.Start()
}

// TileRendered implements output.PipelineObserver.
func (o *consoleObserver) TileRendered(done, _ int) {
	if o.bar != nil {
		o.bar.Set64(int64(done))
	}
}

// ThresholdExceeded implements output.PipelineObserver. The pipeline is
// suspended until the gate is resolved, so blocking on stdin is fine
// here.
func (o *consoleObserver) ThresholdExceeded(count, threshold int) {
	p := o.app.Current()
	if p == nil {
		return
	}
	if o.autoConfirm {
		p.ConfirmContinue()
		return
	}

	prompt := fmt.Sprintf("About to render %d tiles (more than %d). Continue?", count, threshold)
	if askYesNo(prompt) {
		p.ConfirmContinue()
	} else {
		p.ConfirmStop()
	}
}

// LayersSkipped implements output.PipelineObserver.
func (o *consoleObserver) LayersSkipped(names []string, message string) {
	fmt.Printf("skipping layers %v: %s\n", names, message)
}

// Finished implements output.PipelineObserver.
func (o *consoleObserver) Finished(outcome domain.Outcome) {
	if o.bar != nil {
		o.bar.Finish()
		o.bar = nil
	}
	fmt.Printf("finished: %s\n", outcome.String())
}
