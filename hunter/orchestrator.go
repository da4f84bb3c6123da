package hunter

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zaneriley/Home-Hunter/config"
	"github.com/zaneriley/Home-Hunter/dedupe"
	"github.com/zaneriley/Home-Hunter/models"
	"github.com/zaneriley/Home-Hunter/storage"
)

// Announcer delivers one new listing to the outside world.
type Announcer interface {
	Notify(ctx context.Context, l models.Listing) error
}

// CycleResult carries the counters for one hunt cycle.
type CycleResult struct {
	RunUID      string
	Found       int
	New         int
	Notified    int
	Undelivered int
	Anomalies   int
}

// Orchestrator runs the hunt cycle: fetch the search page, parse it,
// classify each listing, persist and announce the new ones.
type Orchestrator struct {
	site       *config.SiteConfig
	fetcher    Fetcher
	parser     *ListingParser
	classifier *dedupe.Classifier
	seen       storage.SeenStore
	announcer  Announcer
	archiver   *Archiver
	ops        *storage.SQLiteStore

	running atomic.Bool

	mu    sync.Mutex
	state models.CycleState
}

func NewOrchestrator(site *config.SiteConfig, fetcher Fetcher, seen storage.SeenStore,
	announcer Announcer, archiver *Archiver, ops *storage.SQLiteStore) *Orchestrator {
	return &Orchestrator{
		site:       site,
		fetcher:    fetcher,
		parser:     NewListingParser(site),
		classifier: dedupe.NewClassifier(seen),
		seen:       seen,
		announcer:  announcer,
		archiver:   archiver,
		ops:        ops,
		state:      models.StateIdle,
	}
}

func (o *Orchestrator) State() models.CycleState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s models.CycleState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// RunCycle performs one full inspection. Fetch and parse problems end
// the cycle cleanly, failed deliveries are logged as undelivered, and
// only a seen store failure comes back as fatal.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{RunUID: uuid.NewString()}

	if !o.running.CompareAndSwap(false, true) {
		log.Printf("[warn] %s: previous cycle still in flight, skipping", o.site.ID)
		o.recordSkipped(ctx, result.RunUID)
		return result, nil
	}
	defer o.running.Store(false)
	defer func() {
		if ctx.Err() != nil {
			o.setState(models.StateShuttingDown)
		} else {
			o.setState(models.StateSleeping)
		}
	}()

	run := o.startRun(ctx, result.RunUID)
	o.logRun(ctx, run, models.LogLevelInfo, fmt.Sprintf("Starting hunt cycle for %s", o.site.Name))

	o.setState(models.StateFetching)
	doc, err := o.fetcher.Fetch(ctx)
	if err != nil {
		o.logRun(ctx, run, models.LogLevelError, fmt.Sprintf("Fetch failed: %v", err))
		o.finishRun(ctx, run, models.RunStatusFailed, result, err.Error())
		return result, err
	}

	if o.archiver != nil {
		o.archiver.Save(ctx, result.RunUID, doc)
	}

	o.setState(models.StateParsing)
	listings, report, err := o.parser.Parse(doc)
	if err != nil {
		o.logRun(ctx, run, models.LogLevelError, fmt.Sprintf("Parse failed: %v", err))
		o.finishRun(ctx, run, models.RunStatusFailed, result, err.Error())
		return result, err
	}
	result.Found = report.Parsed
	result.Anomalies = report.Anomalies
	o.logRun(ctx, run, models.LogLevelInfo, fmt.Sprintf("Parsed %d listings (%d containers, %d anomalies)",
		report.Parsed, report.Containers, report.Anomalies))

	o.setState(models.StateProcessing)
	for _, listing := range listings {
		if err := ctx.Err(); err != nil {
			o.finishRun(ctx, run, models.RunStatusFailed, result, "interrupted")
			return result, err
		}

		if err := o.processListing(ctx, run, listing, result); err != nil {
			o.logRun(ctx, run, models.LogLevelError, fmt.Sprintf("Store failure on %s: %v", listing.URL, err))
			o.finishRun(ctx, run, models.RunStatusFailed, result, err.Error())
			return result, err
		}
	}

	o.finishRun(ctx, run, models.RunStatusCompleted, result, "")
	o.logRun(ctx, run, models.LogLevelInfo, fmt.Sprintf("Cycle complete: %d found, %d new, %d notified, %d undelivered",
		result.Found, result.New, result.Notified, result.Undelivered))

	return result, nil
}

// processListing handles one listing in document order. New listings are
// marked seen before any delivery attempt, so a crash or failed
// notification can never replay them.
func (o *Orchestrator) processListing(ctx context.Context, run *models.HuntRun, listing models.Listing, result *CycleResult) error {
	status, err := o.classifier.Classify(ctx, listing)
	if err != nil {
		return err
	}
	if status == dedupe.StatusSeen {
		return nil
	}

	result.New++
	o.logRun(ctx, run, models.LogLevelInfo, fmt.Sprintf("New listing: %s (%s)", listing.URL, listing.Price))

	if err := o.seen.MarkSeen(ctx, listing.URL, listing.FetchedAt); err != nil {
		return err
	}

	if err := o.announcer.Notify(ctx, listing); err != nil {
		result.Undelivered++
		o.logRun(ctx, run, models.LogLevelWarn, fmt.Sprintf("Undelivered notification for %s: %v", listing.URL, err))
		return nil
	}
	result.Notified++
	return nil
}

func (o *Orchestrator) startRun(ctx context.Context, uid string) *models.HuntRun {
	run := &models.HuntRun{
		UID:       uid,
		SiteID:    o.site.ID,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	if o.ops == nil {
		return run
	}
	id, err := o.ops.CreateRun(ctx, run)
	if err != nil {
		log.Printf("Warning: failed to record run start: %v", err)
		return run
	}
	run.ID = id
	return run
}

func (o *Orchestrator) finishRun(ctx context.Context, run *models.HuntRun, status models.RunStatus, result *CycleResult, note string) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = status
	run.ListingsFound = result.Found
	run.ListingsNew = result.New
	run.Notified = result.Notified
	run.Undelivered = result.Undelivered
	run.Anomalies = result.Anomalies
	run.Note = note
	if o.ops == nil {
		return
	}
	if err := o.ops.FinishRun(ctx, run); err != nil {
		log.Printf("Warning: failed to record run finish: %v", err)
	}
}

func (o *Orchestrator) recordSkipped(ctx context.Context, uid string) {
	if o.ops == nil {
		return
	}
	now := time.Now().UTC()
	run := &models.HuntRun{
		UID:       uid,
		SiteID:    o.site.ID,
		StartedAt: now,
		Status:    models.RunStatusSkipped,
		Note:      "previous cycle still in flight",
	}
	id, err := o.ops.CreateRun(ctx, run)
	if err != nil {
		log.Printf("Warning: failed to record skipped run: %v", err)
		return
	}
	run.ID = id
	run.FinishedAt = &now
	if err := o.ops.FinishRun(ctx, run); err != nil {
		log.Printf("Warning: failed to record skipped run: %v", err)
	}
}

func (o *Orchestrator) logRun(ctx context.Context, run *models.HuntRun, level models.LogLevel, message string) {
	log.Printf("[%s] %s: %s", level, o.site.ID, message)
	if o.ops == nil {
		return
	}
	if err := o.ops.Log(ctx, run.UID, level, message, o.site.ID); err != nil {
		log.Printf("Warning: failed to record log line: %v", err)
	}
}
