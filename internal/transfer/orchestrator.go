// Package transfer drives the per-branch extract, build, encode and upload
// cycle of one project's migration, tolerating partial failure.
package transfer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sonar-solutions/cloudvoyager/internal/logging"
	"github.com/sonar-solutions/cloudvoyager/internal/state"
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
)

// Mode selects between re-sending everything and resumable transfers.
type Mode string

const (
	// ModeFull re-sends every branch and never touches transfer state.
	ModeFull Mode = "full"
	// ModeIncremental skips branches recorded as completed and persists
	// completion state after each successful branch.
	ModeIncremental Mode = "incremental"
)

// Extractor reads one branch's data from the source server.
type Extractor interface {
	ListBranches(project string) ([]models.Branch, error)
	ExtractSnapshot(project, branch string, batchSize int) (*models.Snapshot, error)
}

// Encoder turns a snapshot into the destination's report bundle bytes.
type Encoder interface {
	EncodeSnapshot(snapshot *models.Snapshot) ([]byte, error)
}

// Uploader transmits a report bundle and optionally awaits its processing.
type Uploader interface {
	UploadReport(project, branch string, bundle []byte) (string, error)
	WaitForTask(taskID string) error
}

// StateStore persists transfer state between incremental runs.
type StateStore interface {
	Load() (*state.State, error)
	Save(s *state.State) error
}

// Options configures one project transfer run.
type Options struct {
	// Mode is the transfer mode, full or incremental.
	Mode Mode

	// ExcludeBranches lists non-main branches to skip.
	ExcludeBranches []string

	// IncludeBranches, when non-nil, is a whitelist. It must contain the
	// main branch or the whole project is skipped with zero side effects.
	IncludeBranches []string

	// BatchSize is the page size used during finding extraction.
	BatchSize int

	// Wait blocks each branch until destination-side processing finishes.
	Wait bool
}

// Orchestrator runs the transfer pipeline for one project.
type Orchestrator struct {
	extractor Extractor
	encoder   Encoder
	uploader  Uploader
	store     StateStore
}

// NewOrchestrator wires the transfer pipeline's collaborators.
func NewOrchestrator(extractor Extractor, encoder Encoder, uploader Uploader, store StateStore) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		encoder:   encoder,
		uploader:  uploader,
		store:     store,
	}
}

// branchResult is the immutable per-branch stat record folded into the
// run's running total after each branch completes.
type branchResult struct {
	branch      string
	issues      int
	components  int
	sources     int
	linesOfCode int
}

// Run transfers the project's selected branches. The main branch is always
// processed first and its failure aborts the run; non-main branch failures
// are logged and the run continues. The returned result lists exactly the
// branches whose full cycle completed without error, with stats summed
// across exactly those branches.
func (o *Orchestrator) Run(project string, opts Options) (*models.TransferResult, error) {
	result := &models.TransferResult{}

	branches, err := o.extractor.ListBranches(project)
	if err != nil {
		return result, fmt.Errorf("failed to list branches of %s: %w", project, err)
	}

	var main *models.Branch
	var others []models.Branch
	for i := range branches {
		if branches[i].IsMain {
			main = &branches[i]
		} else {
			others = append(others, branches[i])
		}
	}
	if main == nil {
		return result, fmt.Errorf("project %s has no main branch", project)
	}

	if opts.IncludeBranches != nil && !containsBranch(opts.IncludeBranches, main.Name) {
		logging.Warn("skipping project: include list omits the main branch",
			"project", project,
			"main_branch", main.Name)
		return result, nil
	}

	incremental := opts.Mode == ModeIncremental
	st := state.NewState()
	if incremental {
		loaded, err := o.store.Load()
		if err != nil {
			logging.Warn("failed to load transfer state, resuming from scratch",
				"project", project,
				"error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("transfer state unreadable: %v", err))
		} else {
			st = loaded
		}
	}

	failures := 0

	// Main branch first; its failure is fatal to the whole transfer.
	if incremental && st.IsBranchCompleted(main.Name) {
		logging.Info("skipping already-completed branch",
			"project", project,
			"branch", main.Name)
	} else {
		br, err := o.processBranch(project, main.Name, opts)
		if err != nil {
			o.finishRun(project, st, result, incremental, false)
			return result, fmt.Errorf("main branch %s failed: %w", main.Name, err)
		}
		o.fold(result, br)
		if incremental {
			st.MarkBranchCompleted(main.Name)
		}
	}

	for _, branch := range others {
		if containsBranch(opts.ExcludeBranches, branch.Name) {
			logging.Debug("skipping excluded branch", "branch", branch.Name)
			continue
		}
		if opts.IncludeBranches != nil && !containsBranch(opts.IncludeBranches, branch.Name) {
			logging.Debug("skipping branch not in include list", "branch", branch.Name)
			continue
		}
		if incremental && st.IsBranchCompleted(branch.Name) {
			logging.Info("skipping already-completed branch",
				"project", project,
				"branch", branch.Name)
			continue
		}

		br, err := o.processBranch(project, branch.Name, opts)
		if err != nil {
			failures++
			logging.Error("branch transfer failed, continuing with remaining branches",
				"project", project,
				"branch", branch.Name,
				"error", err)
			continue
		}
		o.fold(result, br)
		if incremental {
			st.MarkBranchCompleted(branch.Name)
		}
	}

	o.finishRun(project, st, result, incremental, failures == 0)

	logging.Info("project transfer finished",
		"project", project,
		"branches_transferred", result.BranchesTransferred,
		"issues", result.IssuesTransferred,
		"lines_of_code", result.LinesOfCode,
		"failed_branches", failures)

	return result, nil
}

// processBranch runs the full extract-build-encode-upload cycle for one
// branch and returns its stats. The branch either completes or fails as a
// unit; no partial upload is reported as success.
func (o *Orchestrator) processBranch(project, branch string, opts Options) (branchResult, error) {
	snapshot, err := o.extractor.ExtractSnapshot(project, branch, opts.BatchSize)
	if err != nil {
		return branchResult{}, fmt.Errorf("extraction failed: %w", err)
	}

	bundle, err := o.encoder.EncodeSnapshot(snapshot)
	if err != nil {
		return branchResult{}, fmt.Errorf("encoding failed: %w", err)
	}

	taskID, err := o.uploader.UploadReport(project, branch, bundle)
	if err != nil {
		return branchResult{}, fmt.Errorf("upload failed: %w", err)
	}

	if opts.Wait {
		if err := o.uploader.WaitForTask(taskID); err != nil {
			return branchResult{}, fmt.Errorf("destination processing failed: %w", err)
		}
	}

	return branchResult{
		branch:      branch,
		issues:      len(snapshot.Issues),
		components:  len(snapshot.Components),
		sources:     len(snapshot.Sources),
		linesOfCode: linesOfCode(snapshot.Measures),
	}, nil
}

// fold accumulates one completed branch's stats into the run total.
func (o *Orchestrator) fold(result *models.TransferResult, br branchResult) {
	result.BranchesTransferred = append(result.BranchesTransferred, br.branch)
	result.IssuesTransferred += br.issues
	result.ComponentsTransferred += br.components
	result.SourcesTransferred += br.sources
	result.LinesOfCode += br.linesOfCode
}

// finishRun appends the run's history entry and persists state. Only
// incremental mode ever writes state; persistence failures degrade to a
// warning on the result.
func (o *Orchestrator) finishRun(project string, st *state.State, result *models.TransferResult, incremental, success bool) {
	if !incremental {
		return
	}

	st.AppendHistory(time.Now().UTC(), success, uuid.NewString())
	if err := o.store.Save(st); err != nil {
		logging.Warn("failed to persist transfer state, resumability is degraded",
			"project", project,
			"error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("transfer state not persisted: %v", err))
	}
}

// linesOfCode parses the numeric "ncloc" measure, defaulting to 0 when the
// measure is missing or not numeric.
func linesOfCode(measures map[string]string) int {
	n, err := strconv.Atoi(measures["ncloc"])
	if err != nil {
		return 0
	}
	return n
}

func containsBranch(branches []string, name string) bool {
	for _, b := range branches {
		if b == name {
			return true
		}
	}
	return false
}
