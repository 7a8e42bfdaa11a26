// Package runner executes single benchmark runs and captures their artifacts.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sivukhin/htapbench/internal/experiment"
	"github.com/sivukhin/htapbench/internal/logging"
)

const (
	ConfigFile     = "config.json"
	CommandFile    = "command"
	ReturnCodeFile = "returncode"
	StdoutFile     = "stdout"
	StderrFile     = "stderr"
	HostFile       = "host.json"
	TraceFile      = "cache.trc"
)

const waitDelay = 5 * time.Second

var (
	ErrOutputExists = errors.New("output path already exists")
	ErrStart        = errors.New("failed to start benchmark binary")
	ErrTimeout      = errors.New("benchmark run did not finish in time")
	ErrInterrupted  = errors.New("benchmark run interrupted")
)

type Result struct {
	Path       string
	Command    string
	ReturnCode int
	Stdout     []byte
	Stderr     []byte
	Duration   time.Duration
	Trace      bool
}

// Failed reports whether the binary exited with a non-zero code.
func (r Result) Failed() bool { return r.ReturnCode != 0 }

// Executor runs the benchmark binary once per call. It records what happened
// and leaves the judgement of non-zero exit codes to the caller.
type Executor struct {
	// WorkDir is the directory the binary is started in; empty means the current one
	WorkDir string
	// TraceFile is where the binary leaves its page-access trace, relative to WorkDir
	TraceFile string
	// Timeout bounds a single run when positive
	Timeout time.Duration
}

func (e *Executor) resolve(path string) string {
	if filepath.IsAbs(path) || e.WorkDir == "" {
		return path
	}
	return filepath.Join(e.WorkDir, path)
}

func writeFile(dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %v: %w", name, err)
	}
	return nil
}

// Execute runs config with its artifacts placed into outputPath, which must
// not exist yet. The configuration record and the command line are written
// before the binary starts.
func (e *Executor) Execute(ctx context.Context, config experiment.Config, outputPath string) (Result, error) {
	_, err := os.Stat(outputPath)
	if err == nil {
		return Result{}, fmt.Errorf("%w: %v", ErrOutputExists, outputPath)
	} else if !os.IsNotExist(err) {
		return Result{}, err
	}
	if err := os.Mkdir(outputPath, 0o755); err != nil {
		if os.IsExist(err) {
			return Result{}, fmt.Errorf("%w: %v", ErrOutputExists, outputPath)
		}
		return Result{}, fmt.Errorf("failed to create output path %v: %w", outputPath, err)
	}

	// the binary resolves the telemetry paths against its own working directory
	telemetryPath := outputPath
	if e.WorkDir != "" {
		if telemetryPath, err = filepath.Abs(outputPath); err != nil {
			return Result{}, err
		}
	}
	args := config.CommandLine(telemetryPath)
	result := Result{Path: outputPath, Command: strings.Join(args, " ")}

	record, err := config.Serialize()
	if err != nil {
		return result, err
	}
	if err := writeFile(outputPath, ConfigFile, append(record, '\n')); err != nil {
		return result, err
	}
	if err := writeFile(outputPath, CommandFile, []byte(result.Command+"\n")); err != nil {
		return result, err
	}
	host, err := json.MarshalIndent(HostStat(), "", "    ")
	if err != nil {
		return result, err
	}
	if err := writeFile(outputPath, HostFile, append(host, '\n')); err != nil {
		return result, err
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	logging.Logger.Infof("$ %v", result.Command)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = e.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children of a killed binary may keep the output pipes open
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout, result.Stderr = stdout.Bytes(), stderr.Bytes()

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		result.ReturnCode = 0
	case errors.As(runErr, &exitErr):
		result.ReturnCode = exitErr.ExitCode()
	default:
		return result, fmt.Errorf("%w %v: %v", ErrStart, args[0], runErr)
	}

	if err := writeFile(outputPath, ReturnCodeFile, []byte(strconv.Itoa(result.ReturnCode)+"\n")); err != nil {
		return result, err
	}
	if err := writeFile(outputPath, StdoutFile, result.Stdout); err != nil {
		return result, err
	}
	if err := writeFile(outputPath, StderrFile, result.Stderr); err != nil {
		return result, err
	}
	if result.Trace, err = e.collectTrace(outputPath, start); err != nil {
		return result, err
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%w after %v: %w", ErrTimeout, result.Duration.Round(time.Second), ctx.Err())
	} else if ctx.Err() != nil {
		return result, fmt.Errorf("%w after %v: %w", ErrInterrupted, result.Duration.Round(time.Second), ctx.Err())
	}
	if result.Failed() {
		logging.Logger.Warnf("run %v exited with code %v", outputPath, result.ReturnCode)
	} else {
		logging.Logger.Infof("run %v finished in %v", outputPath, result.Duration.Round(time.Millisecond))
	}
	return result, nil
}

// collectTrace moves a trace written during this run into the run directory.
func (e *Executor) collectTrace(outputPath string, start time.Time) (bool, error) {
	if e.TraceFile == "" {
		return false, nil
	}
	source := e.resolve(e.TraceFile)
	stat, err := os.Stat(source)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if stat.ModTime().Before(start.Truncate(time.Second)) {
		logging.Logger.Warnf("ignoring stale trace file %v", source)
		return false, nil
	}
	target := filepath.Join(outputPath, TraceFile)
	if err := os.Rename(source, target); err == nil {
		return true, nil
	}
	// rename fails across file systems
	if err := copyFile(source, target); err != nil {
		return false, fmt.Errorf("failed to collect trace %v: %w", source, err)
	}
	return true, os.Remove(source)
}

func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReadReturnCode reads the recorded exit code of a finished run.
func ReadReturnCode(runDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(runDir, ReturnCodeFile))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
