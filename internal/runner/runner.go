// Package runner orchestrates one archive run: enumerate the account users,
// discover their recordings, and move each file to its resolved target.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoomarc/zoomarc/internal/config"
	"github.com/zoomarc/zoomarc/internal/discovery"
	"github.com/zoomarc/zoomarc/internal/diskspace"
	"github.com/zoomarc/zoomarc/internal/logging"
	"github.com/zoomarc/zoomarc/internal/naming"
	"github.com/zoomarc/zoomarc/internal/progress"
	"github.com/zoomarc/zoomarc/internal/transfer"
	"github.com/zoomarc/zoomarc/internal/users"
	"github.com/zoomarc/zoomarc/internal/zoom"
)

// errLimitReached stops the run early once the file limit is hit.
var errLimitReached = errors.New("file limit reached")

// Counters totals one run's outcomes.
type Counters struct {
	UsersProcessed  int
	UsersSkipped    int
	UsersFailed     int
	FilesDownloaded int
	FilesSkipped    int
	FilesPlanned    int // dry-run only
	BytesDownloaded int64
}

// Options are the per-invocation switches, as opposed to configuration.
type Options struct {
	DryRun bool
	Limit  int // stop after this many downloads, 0 means no limit
}

// Deps collects the collaborators a Runner needs.
type Deps struct {
	Config     *config.Config
	Client     zoom.Client
	Selector   users.Selector
	Discoverer *discovery.Discoverer
	Resolver   *naming.Resolver
	Transfers  *transfer.Manager
	Gate       *diskspace.Gate
	Reporter   progress.Reporter
	Logger     logging.Logger
}

// Runner executes archive runs.
type Runner struct {
	deps Deps
	opts Options
}

// NewRunner creates a runner.
func NewRunner(deps Deps, opts Options) *Runner {
	return &Runner{deps: deps, opts: opts}
}

// Run archives every selected user's recordings in the configured date
// range. Counters are returned even on error so a partial run can still be
// summarized.
func (r *Runner) Run(ctx context.Context) (*Counters, error) {
	log := r.deps.Logger
	counters := &Counters{}

	from, to, err := r.deps.Config.DateRange()
	if err != nil {
		return counters, err
	}
	log.InfoWithContext(ctx, "archiving recordings from %s to %s",
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	accountUsers, err := r.deps.Client.ListUsers(ctx, "active")
	if err != nil {
		return counters, fmt.Errorf("failed to list account users: %w", err)
	}

	for _, user := range accountUsers {
		if err := ctx.Err(); err != nil {
			return counters, err
		}
		if !r.deps.Selector.Selected(user.Email) {
			counters.UsersSkipped++
			continue
		}

		err := r.processUser(ctx, user, from, to, counters)
		if errors.Is(err, errLimitReached) {
			log.InfoWithContext(ctx, "stopping: reached limit of %d files", r.opts.Limit)
			break
		}
		if err != nil {
			counters.UsersFailed++
			if r.deps.Config.Run.OnUserError == config.OnUserErrorSkip && ctx.Err() == nil {
				log.ErrorWithContext(ctx, "skipping user %s: %v", user.DisplayName(), err)
				continue
			}
			r.logSummary(ctx, counters)
			return counters, fmt.Errorf("failed processing user %s: %w", user.Email, err)
		}
		counters.UsersProcessed++
	}

	r.logSummary(ctx, counters)
	return counters, nil
}

// processUser discovers and transfers one user's recordings.
func (r *Runner) processUser(ctx context.Context, user zoom.User, from, to time.Time, counters *Counters) error {
	log := r.deps.Logger
	log.InfoWithContext(ctx, "processing user %s", user.DisplayName())

	meetings, err := r.deps.Discoverer.Discover(ctx, user.ID, from, to)
	if err != nil {
		return err
	}
	log.DebugWithContext(ctx, "found %d meetings with downloadable files for %s",
		len(meetings), user.Email)

	userFolder := naming.UserFolder(user.Email, user.ID)
	for _, meeting := range meetings {
		for _, file := range meeting.RecordingFiles {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.processFile(ctx, meeting, file, userFolder, counters); err != nil {
				return err
			}
			if r.opts.Limit > 0 && counters.FilesDownloaded >= r.opts.Limit {
				return errLimitReached
			}
		}
	}

	return nil
}

// processFile moves one recording file to its target.
func (r *Runner) processFile(ctx context.Context, meeting zoom.Meeting, file zoom.RecordingFile, userFolder string, counters *Counters) error {
	log := r.deps.Logger

	target, err := r.deps.Resolver.Resolve(meeting, file, userFolder)
	if err != nil {
		return err
	}
	path := target.Path()

	state, err := r.deps.Transfers.CheckTarget(path, file.FileSize)
	if err != nil {
		return err
	}
	if state == transfer.TargetComplete {
		log.DebugWithContext(ctx, "already archived: %s", path)
		counters.FilesSkipped++
		return nil
	}

	if r.opts.DryRun {
		log.InfoWithContext(ctx, "would download %s (%s) to %s",
			file.ID, diskspace.SizeToString(file.FileSize), path)
		counters.FilesPlanned++
		return nil
	}

	if err := r.deps.Gate.Await(ctx, file.FileSize); err != nil {
		return err
	}

	r.deps.Reporter.Start(file.FileSize, target.FileName)
	result, err := r.deps.Transfers.Transfer(ctx, file.DownloadURL, path, file.FileSize, r.deps.Reporter.Update)
	if err != nil {
		r.deps.Reporter.Error(err)
		return err
	}
	r.deps.Reporter.Finish()

	if result.Skipped {
		counters.FilesSkipped++
		return nil
	}
	counters.FilesDownloaded++
	counters.BytesDownloaded += result.Bytes
	log.DebugWithContext(ctx, "archived %s (%s)", path, diskspace.SizeToString(result.Bytes))

	return nil
}

func (r *Runner) logSummary(ctx context.Context, counters *Counters) {
	r.deps.Logger.WithFields(logging.InfoLevel, "run complete", map[string]interface{}{
		"users_processed":  counters.UsersProcessed,
		"users_skipped":    counters.UsersSkipped,
		"users_failed":     counters.UsersFailed,
		"files_downloaded": counters.FilesDownloaded,
		"files_skipped":    counters.FilesSkipped,
		"files_planned":    counters.FilesPlanned,
		"bytes_downloaded": diskspace.SizeToString(counters.BytesDownloaded),
	})
}
