package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"time"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/stores"
)

const (
	sentinelInProgress = "STAGING-IN-PROGRESS"
	sentinelSucceeded  = "STAGING-SUCCEEDED"
	sentinelErrors     = "STAGING-ERRORS"
)

// StagerTask copies a batch of files onto dest and hands ownership to
// user via an external chown command. Unlike OffloaderTask, a failure on
// one file doesn't stop the rest of the batch: every entry is attempted,
// and failures are reported together at the end.
type StagerTask struct {
	dest     string
	info     []StageInfo
	user     string
	chownCmd []string
	stores   *stores.Registry

	failures []stageFailure
}

type stageFailure struct {
	path string
	err  string
}

// newStagerTask claims dest's STAGING-IN-PROGRESS sentinel (failing if
// one already exists, meaning a stage into dest is already running) and
// clears any sentinels left over from a previous run, before ever
// touching a copy.
func newStagerTask(dest string, info []StageInfo, user string, chownCmd []string, registry *stores.Registry) (*StagerTask, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create staging destination %s: %w", dest, err)
	}

	lockPath := filepath.Join(dest, sentinelInProgress)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
	if err != nil {
		if os.IsExist(err) {
			return nil, errs.Conflictf("a staging operation into directory %q is already in progress", dest)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", time.Now().Unix())
	f.Close()

	for _, name := range []string{sentinelSucceeded, sentinelErrors} {
		_ = os.Remove(filepath.Join(dest, name))
	}

	return &StagerTask{dest: dest, info: info, user: user, chownCmd: chownCmd, stores: registry}, nil
}

func (t *StagerTask) Describe() string {
	return fmt.Sprintf("stage %d files to %s", len(t.info), t.dest)
}

// Work copies every entry, tolerating per-file failures, then - if
// everything succeeded - hands ownership of the destination tree to
// t.user via the external chown command.
func (t *StagerTask) Work(ctx context.Context) (any, error) {
	for _, item := range t.info {
		driver, err := t.stores.Get(item.StoreName)
		if err != nil {
			t.failures = append(t.failures, stageFailure{path: item.Name, err: err.Error()})
			continue
		}

		relPath := path.Join(item.ParentDirs, item.Name)
		destPath := filepath.Join(t.dest, filepath.FromSlash(item.ParentDirs), item.Name)

		if err := copyToLocal(ctx, driver, relPath, destPath); err != nil {
			t.failures = append(t.failures, stageFailure{path: destPath, err: err.Error()})
		}
	}

	if len(t.failures) > 0 {
		return nil, fmt.Errorf("failures while attempting to create and copy %d file(s)", len(t.failures))
	}

	if len(t.chownCmd) == 0 {
		return nil, nil
	}

	argv := append(append([]string{}, t.chownCmd[1:]...), "-u", t.user, "-R", "-d", t.dest)
	cmd := exec.CommandContext(ctx, t.chownCmd[0], argv...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("chown staged files: %w: %s", err, out)
	}
	return nil, nil
}

func copyToLocal(ctx context.Context, driver stores.Driver, relPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	src, err := driver.Open(ctx, relPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// Wrapup writes the STAGING-SUCCEEDED or STAGING-ERRORS sentinel and
// always removes STAGING-IN-PROGRESS, even when Work panicked-equivalent
// (returned an error), so a later retry into the same directory isn't
// permanently locked out.
func (t *StagerTask) Wrapup(_ any, workErr error) error {
	defer os.Remove(filepath.Join(t.dest, sentinelInProgress))

	if workErr != nil || len(t.failures) > 0 {
		f, err := os.Create(filepath.Join(t.dest, sentinelErrors))
		if err != nil {
			return err
		}
		defer f.Close()
		if workErr != nil {
			fmt.Fprintf(f, "Unhandled exception: %v\n", workErr)
		}
		for _, failure := range t.failures {
			fmt.Fprintf(f, "For %s: %s\n", failure.path, failure.err)
		}
		return nil
	}

	f, err := os.Create(filepath.Join(t.dest, sentinelSucceeded))
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Fprintf(f, "%d\n", time.Now().Unix())
	return nil
}
