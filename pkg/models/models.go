// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// Branch represents a single branch of a SonarQube project.
type Branch struct {
	// Name is the branch name (e.g., "main", "develop")
	Name string

	// IsMain indicates whether this is the project's main branch
	IsMain bool
}

// Component represents one node of a project's component tree, either
// a directory or a source file.
type Component struct {
	// Key is the server-side component key (e.g., "my-project:src/app.go")
	Key string

	// Path is the component path relative to the project root
	Path string

	// Qualifier is the component kind as reported by the server
	// ("FIL" for files, "DIR" for directories)
	Qualifier string

	// Language is the detected language key for file components (e.g., "go")
	Language string
}

// IsFile reports whether the component is a source file.
func (c Component) IsFile() bool {
	return c.Qualifier == "FIL"
}

// TextRange is the precise location of a finding within a file.
type TextRange struct {
	StartLine   int `json:"startLine"`
	EndLine     int `json:"endLine"`
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`
}

// Comment is a single triage comment recorded against a finding.
type Comment struct {
	// Author is the login of the user who wrote the comment
	Author string

	// CreatedAt is the timestamp the comment was posted
	CreatedAt time.Time

	// Text is the comment body (markdown)
	Text string
}

// Finding represents an issue or a security hotspot recorded against a
// specific source location. Source and destination servers each have their
// own key space; keys from the two sides are never assumed equal.
type Finding struct {
	// Key is the server-assigned unique identifier
	Key string

	// Rule is the rule identifier that raised the finding (e.g., "go:S1067")
	Rule string

	// Path is the file path of the component the finding is attached to
	Path string

	// Line is the primary line of the finding, zero when the server
	// reported no direct line field
	Line int

	// TextRange is the precise location, when reported
	TextRange *TextRange

	// Message is the finding description shown to users
	Message string

	// Severity is the severity level (e.g., "MAJOR"), issues only
	Severity string

	// Status is the workflow status (e.g., "OPEN", "CONFIRMED", "TO_REVIEW")
	Status string

	// Resolution qualifies resolved findings (e.g., "FALSE-POSITIVE", "SAFE")
	Resolution string

	// Assignee is the login of the assigned user, empty when unassigned
	Assignee string

	// Tags is the list of tags attached to the finding
	Tags []string

	// Comments is the list of triage comments in chronological order
	Comments []Comment
}

// StartLine returns the effective line of the finding: the direct line
// field when present, otherwise the text range's start line.
func (f Finding) StartLine() int {
	if f.Line > 0 {
		return f.Line
	}
	if f.TextRange != nil {
		return f.TextRange.StartLine
	}
	return 0
}

// Snapshot holds everything extracted from one branch of the source server.
// It is immutable once produced and owned by the report builder for the
// duration of one branch's processing.
type Snapshot struct {
	// ProjectKey is the source project key
	ProjectKey string

	// Branch is the branch the snapshot was taken from
	Branch string

	// Revision is the SCM revision of the latest analysis, when known
	Revision string

	// AnalysisDate is the timestamp of the latest analysis on the branch
	AnalysisDate time.Time

	// Components is the component tree in server listing order
	Components []Component

	// Sources maps file component paths to their raw source text
	Sources map[string]string

	// Issues is the set of issues recorded on the branch
	Issues []Finding

	// Hotspots is the set of security hotspots recorded on the branch
	Hotspots []Finding

	// Measures is the flat set of (metricKey, value) measures
	Measures map[string]string
}

// TransferResult aggregates the outcome of one project transfer run.
type TransferResult struct {
	// BranchesTransferred lists exactly the branches whose full
	// extract-build-encode-upload cycle completed without error
	BranchesTransferred []string

	// IssuesTransferred is the total issue count across transferred branches
	IssuesTransferred int

	// ComponentsTransferred is the total component count across transferred branches
	ComponentsTransferred int

	// SourcesTransferred is the total source file count across transferred branches
	SourcesTransferred int

	// LinesOfCode is the summed "ncloc" measure across transferred branches
	LinesOfCode int

	// Warnings collects non-fatal degradations (e.g., state file I/O failures)
	Warnings []string
}

// ReconcileResult aggregates the outcome of one reconciliation run.
type ReconcileResult struct {
	// Matched counts source findings paired with a destination finding,
	// whether or not any workflow field differed
	Matched int

	// StatusChanged counts attempted status transitions
	StatusChanged int

	// Assigned counts attempted assignee updates
	Assigned int

	// Commented counts comments posted to the destination
	Commented int

	// Tagged counts tag-list updates
	Tagged int

	// Failed counts individual operations that returned an error
	Failed int
}
