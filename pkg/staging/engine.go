// Package staging copies cataloged files from their stores onto a local
// destination directory on the machine running the librarian, so that
// users working on that machine can access the data without an external
// transfer. Built for deployments with both large local storage arrays
// and a shared network filesystem mount on the same host.
package staging

import (
	"os/user"
	"path/filepath"
	"strings"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/log"
	"github.com/cuemby/librarian/pkg/search"
	"github.com/cuemby/librarian/pkg/stores"
	"github.com/cuemby/librarian/pkg/tasks"
	"github.com/rs/zerolog"
)

// StageInfo is one file to be staged: the store it currently lives on
// (for driver lookup) plus its store-relative location.
type StageInfo struct {
	StoreName  string
	ParentDirs string
	Name       string
	Size       int64
}

// Engine validates and launches local-disk staging operations.
type Engine struct {
	search      *search.Engine
	localStores *stores.Registry
	mgr         *tasks.Manager
	destPrefix  string
	sshHost     string
	chownCmd    []string
	logger      zerolog.Logger
}

// NewEngine builds an Engine. destPrefix bounds every staging
// destination (a caller-supplied path that doesn't resolve under it is
// rejected); sshHost restricts eligible source stores to the host this
// process can read directly off of; chownCmd is the external
// ownership-fixing command invoked after a successful copy
// (e.g. []string{"sudo", "chown"}).
func NewEngine(searchEngine *search.Engine, localStores *stores.Registry, mgr *tasks.Manager, destPrefix, sshHost string, chownCmd []string) *Engine {
	return &Engine{
		search:      searchEngine,
		localStores: localStores,
		mgr:         mgr,
		destPrefix:  destPrefix,
		sshHost:     sshHost,
		chownCmd:    chownCmd,
		logger:      log.WithComponent("staging"),
	}
}

// LaunchResult is what LaunchStage reports back to the caller; the actual
// copy runs asynchronously on the Task Manager.
type LaunchResult struct {
	Dest          string
	InstanceCount int
	TotalBytes    int64
}

// LaunchStage validates owningUser and stageDest, gathers the files
// rawSearch matches that live on an eligible store, and submits a
// StagerTask to copy them. It returns once the task is queued; copy
// progress is only visible via the three sentinel files it writes into
// Dest.
func (e *Engine) LaunchStage(owningUser, rawSearch, stageDest string) (LaunchResult, error) {
	if _, err := user.Lookup(owningUser); err != nil {
		return LaunchResult{}, errs.BadRequestf("staging user %q was not recognized by the system", owningUser)
	}

	dest, err := filepath.Abs(stageDest)
	if err != nil {
		return LaunchResult{}, errs.BadRequestf("invalid staging destination %q: %v", stageDest, err)
	}
	if !strings.HasPrefix(dest, e.destPrefix) {
		return LaunchResult{}, errs.BadRequestf(
			"staging destination must resolve to a subdirectory of %q; input %q resolved to %q instead",
			e.destPrefix, stageDest, dest)
	}

	info, totalBytes, err := e.gatherStageInfo(rawSearch)
	if err != nil {
		return LaunchResult{}, err
	}

	task, err := newStagerTask(dest, info, owningUser, e.chownCmd, e.localStores)
	if err != nil {
		return LaunchResult{}, err
	}

	h := e.mgr.Submit(task)
	if h == nil {
		return LaunchResult{}, errs.Transientf("staging: task manager is draining, try again later")
	}

	e.logger.Info().Str("dest", dest).Int("count", len(info)).Int64("bytes", totalBytes).
		Msg("staging: task launched")
	return LaunchResult{Dest: dest, InstanceCount: len(info), TotalBytes: totalBytes}, nil
}

// gatherStageInfo resolves rawSearch to instances on a store matching
// e.sshHost that is currently available, deduplicating by file name -
// staging two instances of the same file would otherwise try to write
// the same destination path twice.
func (e *Engine) gatherStageInfo(rawSearch string) ([]StageInfo, int64, error) {
	pairs, err := e.search.InstancesWithStores(rawSearch)
	if err != nil {
		return nil, 0, err
	}

	var out []StageInfo
	var totalBytes int64
	seen := map[string]bool{}

	for _, p := range pairs {
		if p.Store.SSHHost != e.sshHost || !p.Store.Available {
			continue
		}
		if seen[p.Instance.Name] {
			continue
		}
		seen[p.Instance.Name] = true
		totalBytes += p.File.Size
		out = append(out, StageInfo{
			StoreName:  p.Store.Name,
			ParentDirs: p.Instance.ParentDirs,
			Name:       p.Instance.Name,
			Size:       p.File.Size,
		})
	}
	return out, totalBytes, nil
}
