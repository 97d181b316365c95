// Package orchestrator drives the full fix workflow: detect issues, queue
// them, and run claim/fix/record loops until the batch budget is spent.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/codeflow/internal/config"
	"github.com/lucasnoah/codeflow/internal/detect"
	"github.com/lucasnoah/codeflow/internal/interactions"
	"github.com/lucasnoah/codeflow/internal/queue"
	"github.com/lucasnoah/codeflow/internal/specialist"
	"github.com/lucasnoah/codeflow/internal/strategy"
)

// Options configures one workflow run.
type Options struct {
	Path          string
	FixTypes      []string // error-code prefixes to fix; empty = everything
	MaxFixes      int
	Workers       int
	Provider      string // override the configured fallback sequence
	Model         string
	Strategy      string
	DryRun        bool
	CreateBackups bool
}

// FixedFile records one successfully fixed file batch.
type FixedFile struct {
	FilePath   string  `json:"file_path"`
	ErrorCodes string  `json:"error_codes"`
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
}

// FailedIssue records one issue that could not be fixed.
type FailedIssue struct {
	FilePath  string `json:"file_path"`
	ErrorCode string `json:"error_code"`
	Line      int    `json:"line"`
	Reason    string `json:"reason"`
}

// Report is the aggregate outcome of a run. Every failure mode folds into
// the report; Run never panics outward and never returns an error value.
type Report struct {
	Success      bool          `json:"success"`
	SessionID    string        `json:"session_id"`
	Detected     int           `json:"detected"`
	Queued       int           `json:"queued"`
	Processed    int           `json:"processed"`
	Completed    int           `json:"completed"`
	Failed       int           `json:"failed"`
	Fixed        []FixedFile   `json:"fixed,omitempty"`
	FailedIssues []FailedIssue `json:"failed_issues,omitempty"`
	Duration     time.Duration `json:"duration"`
	Summary      string        `json:"summary"`
	Error        string        `json:"error,omitempty"`
}

// Workflow wires the detection, queue, specialist, strategy, and logging
// layers together.
type Workflow struct {
	cfg          *config.Config
	detector     *detect.Detector
	queue        *queue.Store
	specialists  *specialist.Manager
	strategyDeps strategy.Deps
	history      *interactions.Store // optional
	logger       *slog.Logger
	progress     io.Writer
}

// New creates a workflow. history may be nil to disable interaction logging.
func New(cfg *config.Config, detector *detect.Detector, q *queue.Store,
	specialists *specialist.Manager, deps strategy.Deps,
	history *interactions.Store, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		cfg:          cfg,
		detector:     detector,
		queue:        q,
		specialists:  specialists,
		strategyDeps: deps,
		history:      history,
		logger:       logger,
	}
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (w *Workflow) SetProgress(out io.Writer) {
	w.progress = out
}

// logf prints a progress line if a progress writer is configured.
func (w *Workflow) logf(format string, args ...interface{}) {
	if w.progress != nil {
		fmt.Fprintf(w.progress, "  → "+format+"\n", args...)
	}
}

// Run executes the workflow and always returns a report.
func (w *Workflow) Run(ctx context.Context, opts Options) (report *Report) {
	start := time.Now()
	sessionID := uuid.NewString()
	report = &Report{SessionID: sessionID}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("workflow panicked", "panic", r)
			report.Success = false
			report.Error = fmt.Sprintf("internal error: %v", r)
		}
		report.Duration = time.Since(start)
		if report.Summary == "" {
			report.Summary = fmt.Sprintf(
				"%d issues detected, %d queued, %d processed: %d fixed, %d failed",
				report.Detected, report.Queued, report.Processed,
				report.Completed, report.Failed)
		}
	}()

	if opts.Path == "" {
		opts.Path = "."
	}
	if opts.MaxFixes <= 0 {
		opts.MaxFixes = w.cfg.Engine.Workflow.MaxFixes
	}
	if opts.Workers <= 0 {
		opts.Workers = w.cfg.Engine.Workflow.Workers
	}

	w.logf("detecting issues in %s", opts.Path)
	issues := w.detector.Detect(opts.Path)
	report.Detected = len(issues)
	if len(issues) == 0 {
		report.Success = true
		report.Summary = "no issues detected"
		return report
	}

	report.Queued = w.queue.QueueIssues(sessionID, issues)
	w.logf("queued %d of %d detected issues", report.Queued, report.Detected)

	if opts.DryRun {
		return w.dryRun(ctx, opts, report)
	}

	if w.history != nil {
		if err := w.history.StartSession(sessionID); err != nil {
			w.logger.Warn("could not record session start", "error", err)
		}
	}

	w.process(ctx, opts, sessionID, report)

	if w.history != nil {
		if err := w.history.FinishSession(sessionID, report.Processed,
			report.Completed, report.Failed, time.Since(start)); err != nil {
			w.logger.Warn("could not record session finish", "error", err)
		}
	}

	report.Success = report.Failed == 0
	return report
}

// dryRun reports what would be claimed without fixing anything.
func (w *Workflow) dryRun(ctx context.Context, opts Options, report *Report) *Report {
	items := w.queue.NextIssues(ctx, opts.MaxFixes, "", opts.FixTypes)
	for _, it := range items {
		w.logf("would fix %s:%d %s", it.FilePath, it.LineNumber, it.ErrorCode)
	}
	report.Success = true
	report.Summary = fmt.Sprintf("dry run: %d issues queued, %d would be fixed", report.Queued, len(items))
	return report
}

// process runs the worker pool over the queue until MaxFixes issues have
// been processed or no pending work remains.
func (w *Workflow) process(ctx context.Context, opts Options, sessionID string, report *Report) {
	fallback := w.cfg.Engine.LLM.Fallback
	if opts.Provider != "" || opts.Model != "" {
		fallback = []config.FallbackEntry{{Provider: opts.Provider, Model: opts.Model}}
	}
	deps := w.strategyDeps
	deps.Fallback = fallback
	deps.CreateBackups = opts.CreateBackups
	strat := strategy.NewSelector(deps).Get(opts.Strategy)

	batchSize := w.cfg.Engine.Workflow.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	var (
		mu        sync.Mutex
		remaining = int64(opts.MaxFixes)
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Workers; i++ {
		workerID := fmt.Sprintf("%s-w%d", sessionID[:8], i)
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				claim := reserve(&remaining, int64(batchSize))
				if claim == 0 {
					return nil
				}

				items := w.queue.NextIssues(gctx, int(claim), workerID, opts.FixTypes)
				if len(items) == 0 {
					atomic.AddInt64(&remaining, claim)
					return nil
				}
				// Refund the part of the reservation the queue couldn't fill
				// so other workers can still claim it.
				if short := claim - int64(len(items)); short > 0 {
					atomic.AddInt64(&remaining, short)
				}

				for _, group := range groupByFile(items) {
					res := w.fixGroup(gctx, strat, group, sessionID)
					mu.Lock()
					w.record(report, group, res)
					mu.Unlock()
				}
			}
		})
	}
	g.Wait()
}

// fixGroup runs the strategy over one file's claimed items and writes the
// outcome back to the queue and the interaction log.
func (w *Workflow) fixGroup(ctx context.Context, strat strategy.Strategy, items []queue.Item, sessionID string) *strategy.Result {
	issues := make([]detect.LintingIssue, 0, len(items))
	for _, it := range items {
		issues = append(issues, it.Issue())
	}

	w.logf("fixing %s (%d issues)", items[0].FilePath, len(items))
	attemptStart := time.Now()
	res := strat.Fix(ctx, issues, sessionID)
	elapsed := time.Since(attemptStart)

	status := queue.StatusCompleted
	if !res.Success {
		status = queue.StatusFailed
		w.logf("failed %s: %s", items[0].FilePath, res.Error)
	} else {
		w.logf("fixed %s with %s/%s (confidence %.2f)",
			items[0].FilePath, res.ProviderUsed, res.ModelUsed, res.Confidence)
	}

	fixJSON, err := json.Marshal(res)
	if err != nil {
		fixJSON = nil
	}
	for _, it := range items {
		if err := w.queue.UpdateStatus(it.ID, status, string(fixJSON)); err != nil {
			w.logger.Warn("could not update queue item", "id", it.ID, "error", err)
		}
	}

	if agent, ok := specialist.ParseAgentType(res.AgentType); ok {
		w.specialists.RecordResult(agent, res.Success, res.Confidence)
	}

	if w.history != nil {
		if _, err := w.history.LogInteraction(interactions.Interaction{
			SessionID:  sessionID,
			FilePath:   items[0].FilePath,
			ErrorCodes: joinCodes(issues),
			AgentType:  res.AgentType,
			Provider:   res.ProviderUsed,
			Model:      res.ModelUsed,
			Prompt:     res.Prompt,
			Response:   res.Content,
			Success:    res.Success,
			Confidence: res.Confidence,
			DurationMS: elapsed.Milliseconds(),
		}); err != nil {
			w.logger.Warn("could not log interaction", "error", err)
		}
	}

	return res
}

// record folds one group outcome into the report. Callers hold the report
// lock.
func (w *Workflow) record(report *Report, items []queue.Item, res *strategy.Result) {
	report.Processed += len(items)
	if res.Success {
		report.Completed += len(items)
		issues := make([]detect.LintingIssue, 0, len(items))
		for _, it := range items {
			issues = append(issues, it.Issue())
		}
		report.Fixed = append(report.Fixed, FixedFile{
			FilePath:   items[0].FilePath,
			ErrorCodes: joinCodes(issues),
			Provider:   res.ProviderUsed,
			Model:      res.ModelUsed,
			Confidence: res.Confidence,
		})
		return
	}

	report.Failed += len(items)
	for _, it := range items {
		report.FailedIssues = append(report.FailedIssues, FailedIssue{
			FilePath:  it.FilePath,
			ErrorCode: it.ErrorCode,
			Line:      it.LineNumber,
			Reason:    res.Error,
		})
	}
}

// reserve atomically takes up to want from the shared fix budget, returning
// how much was actually reserved. Reservations happen before the queue claim
// so concurrent workers can never claim more than the budget in total.
func reserve(budget *int64, want int64) int64 {
	for {
		cur := atomic.LoadInt64(budget)
		if cur <= 0 {
			return 0
		}
		take := want
		if take > cur {
			take = cur
		}
		if atomic.CompareAndSwapInt64(budget, cur, cur-take) {
			return take
		}
	}
}

// groupByFile splits claimed items into per-file batches, preserving claim
// order within each file.
func groupByFile(items []queue.Item) [][]queue.Item {
	byFile := make(map[string][]queue.Item)
	var order []string
	for _, it := range items {
		if _, ok := byFile[it.FilePath]; !ok {
			order = append(order, it.FilePath)
		}
		byFile[it.FilePath] = append(byFile[it.FilePath], it)
	}

	out := make([][]queue.Item, 0, len(order))
	for _, f := range order {
		out = append(out, byFile[f])
	}
	return out
}

func joinCodes(issues []detect.LintingIssue) string {
	seen := make(map[string]bool)
	var codes []string
	for _, i := range issues {
		if !seen[i.ErrorCode] {
			seen[i.ErrorCode] = true
			codes = append(codes, i.ErrorCode)
		}
	}
	sort.Strings(codes)
	out := ""
	for i, c := range codes {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
