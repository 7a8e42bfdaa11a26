package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sivukhin/htapbench/internal/config"
	"github.com/sivukhin/htapbench/internal/logging"
)

const (
	ImportStdoutFile = "import_stdout"
	ImportStderrFile = "import_stderr"
)

var ErrImport = errors.New("database import failed")

// ImportDatabases makes sure every configured disk holds a database. The first
// missing one is imported from the dataset by the binary itself; later ones
// are copied from the first disk. The output of the import goes to resultRoot.
func (e *Executor) ImportDatabases(ctx context.Context, settings *config.Settings, resultRoot string) error {
	if err := os.MkdirAll(resultRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create result root %v: %w", resultRoot, err)
	}
	first := ""
	for _, disk := range settings.Sweep.Disks {
		path := e.resolve(disk.Path)
		if _, err := os.Stat(path); err == nil {
			logging.Logger.Infof("database %v already exists, skip initialization", disk.Name)
		} else {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create database directory for %v: %w", disk.Name, err)
			}
			if first != "" {
				logging.Logger.Infof("copying database from %v to %v", first, path)
				if err := copyFile(first, path); err != nil {
					return fmt.Errorf("failed to copy database to %v: %w", disk.Name, err)
				}
			} else if err := e.importDatabase(ctx, settings, disk.Path, resultRoot); err != nil {
				return err
			}
		}
		if first == "" {
			first = path
		}
	}
	return nil
}

func (e *Executor) importDatabase(ctx context.Context, settings *config.Settings, databasePath, resultRoot string) error {
	run := settings.Experiment()
	run.DatabasePath = databasePath
	args := run.ImportCommandLine()

	logging.Logger.Infof("importing database to %v", databasePath)
	logging.Logger.Infof("$ %v", strings.Join(args, " "))
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = e.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	if err := writeFile(resultRoot, ImportStdoutFile, stdout.Bytes()); err != nil {
		return err
	}
	if err := writeFile(resultRoot, ImportStderrFile, stderr.Bytes()); err != nil {
		return err
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return fmt.Errorf("%w with returncode %v", ErrImport, exitErr.ExitCode())
	} else if runErr != nil {
		return fmt.Errorf("%w %v: %v", ErrStart, args[0], runErr)
	}
	return nil
}
