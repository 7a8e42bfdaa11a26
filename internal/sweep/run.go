package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sivukhin/htapbench/internal/experiment"
	"github.com/sivukhin/htapbench/internal/logging"
	"github.com/sivukhin/htapbench/internal/runner"
)

// Executor runs one configuration into an output directory.
type Executor interface {
	Execute(ctx context.Context, config experiment.Config, outputPath string) (runner.Result, error)
}

// Recorder receives the outcome of every entry of a sweep.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

// Failure kinds of a sweep entry.
const (
	KindPrecondition = "precondition"
	KindStart        = "start"
	KindTimeout      = "timeout"
	KindInterrupted  = "interrupted"
	KindIO           = "io"
)

// Kind classifies an entry error for logs and the catalog.
func Kind(err error) string {
	switch {
	case errors.Is(err, runner.ErrOutputExists):
		return KindPrecondition
	case errors.Is(err, runner.ErrStart):
		return KindStart
	case errors.Is(err, runner.ErrTimeout):
		return KindTimeout
	case errors.Is(err, runner.ErrInterrupted):
		return KindInterrupted
	}
	return KindIO
}

type Outcome struct {
	Session    string
	Entry      Entry
	ReturnCode int
	Kind       string
	Err        error
	Started    time.Time
	Finished   time.Time
}

type Failure struct {
	Path string
	Kind string
	Err  error
}

type Report struct {
	Session  string
	Executed int
	// NonZero counts runs whose binary exited with a non-zero code
	NonZero  int
	Failures []Failure
}

// Run executes the entries one after another under root. A failing entry is
// logged and recorded, and the sweep moves on; only cancellation of ctx stops
// it early, in which case the report so far is returned together with the
// context error.
func Run(ctx context.Context, root string, entries []Entry, executor Executor, recorder Recorder) (Report, error) {
	report := Report{Session: uuid.NewString()}
	logging.Logger.Infof("starting sweep session %v with %v runs under %v", report.Session, len(entries), root)
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("sweep interrupted before %v: %w", entry.Path, err)
		}
		outputPath := filepath.Join(root, filepath.FromSlash(entry.Path))
		logging.Logger.Infof("running #%v/%v %v", i+1, len(entries), entry.Path)

		outcome := Outcome{Session: report.Session, Entry: entry, Started: time.Now()}
		result, err := execute(ctx, executor, entry, outputPath)
		outcome.Finished = time.Now()
		outcome.ReturnCode = result.ReturnCode
		if err != nil {
			outcome.Kind, outcome.Err = Kind(err), err
			report.Failures = append(report.Failures, Failure{Path: outputPath, Kind: outcome.Kind, Err: err})
			logging.Logger.Errorf("skipped %v (%v): %v", outputPath, outcome.Kind, err)
		} else {
			report.Executed++
			if result.Failed() {
				report.NonZero++
			}
		}
		if recorder != nil {
			if err := recorder.Record(ctx, outcome); err != nil {
				logging.Logger.Warnf("failed to record outcome of %v: %v", entry.Path, err)
			}
		}
	}
	logging.Logger.Infof(
		"sweep session %v finished: executed=%v, non-zero=%v, skipped=%v",
		report.Session, report.Executed, report.NonZero, len(report.Failures),
	)
	return report, nil
}

func execute(ctx context.Context, executor Executor, entry Entry, outputPath string) (runner.Result, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return runner.Result{}, fmt.Errorf("failed to create parent of %v: %w", outputPath, err)
	}
	return executor.Execute(ctx, entry.Config, outputPath)
}
