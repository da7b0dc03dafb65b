package models

import (
	"strings"
	"time"
)

// State is a step of the per-repository modernization state machine.
type State string

const (
	StateValidated              State = "validated"
	StateFetched                State = "fetched"
	StatePrecheckedOrRemediated State = "prechecked"
	StateMetadataCollected      State = "metadata_collected"
	StateCompatibilityResolved  State = "compatibility_resolved"
	StateTransformed            State = "transformed"
	StateVerified               State = "verified"
	StatePublished              State = "published"
	StateSkippedWithErrors      State = "skipped_with_errors"
)

// Outcome summarises how processing of one repository ended.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeDryRun       Outcome = "dry_run"
	OutcomeMetadataOnly Outcome = "metadata_only"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeFailed       Outcome = "failed"
)

// Plugin is the mutable processing state of one plugin repository. It is owned
// by exactly one orchestrator task at a time.
type Plugin struct {
	Name       string
	Repository string
	LocalDir   string

	State    State
	Metadata *Metadata

	// JDK is the rung the last build ran with.
	JDK int

	ChangedFiles      []string
	ChangeRequestURL  string
	Warnings          []error
	Errors            []error
	StartedAt         time.Time
	FinishedAt        time.Time
	metadataCollected bool
}

// NewPlugin creates the processing state for a plugin name. Names ending in
// "-plugin" are taken as repository names.
func NewPlugin(name string) *Plugin {
	name = strings.TrimSpace(name)
	repo := name
	if strings.HasSuffix(name, "-plugin") {
		name = strings.TrimSuffix(name, "-plugin")
	} else {
		repo = name + "-plugin"
	}
	return &Plugin{
		Name:       name,
		Repository: repo,
		Metadata:   NewMetadata(),
	}
}

// AddError records a fatal error for this repository.
func (p *Plugin) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// AddWarning records a non-fatal problem.
func (p *Plugin) AddWarning(err error) {
	if err != nil {
		p.Warnings = append(p.Warnings, err)
	}
}

// HasErrors reports whether a fatal error was recorded.
func (p *Plugin) HasErrors() bool { return len(p.Errors) > 0 }

// ClearErrors forgets recorded fatal errors and open precondition errors.
func (p *Plugin) ClearErrors() {
	p.Errors = nil
	if p.Metadata != nil {
		p.Metadata.ClearErrors()
	}
}

// MarkMetadataCollected notes that at least one collection succeeded.
func (p *Plugin) MarkMetadataCollected() { p.metadataCollected = true }

// MetadataCollected reports whether a collection succeeded during this run.
func (p *Plugin) MetadataCollected() bool { return p.metadataCollected }

// Result is the per-repository summary persisted after a run.
type Result struct {
	ID               string    `json:"id"`
	RunID            string    `json:"run_id" badgerhold:"index"`
	Plugin           string    `json:"plugin" badgerhold:"index"`
	Repository       string    `json:"repository"`
	State            State     `json:"state"`
	Outcome          Outcome   `json:"outcome"`
	JDK              int       `json:"jdk,omitempty"`
	ChangedFiles     []string  `json:"changed_files,omitempty"`
	ChangeRequestURL string    `json:"change_request_url,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
	Errors           []string  `json:"errors,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// NewResult summarises p for the given run and outcome.
func NewResult(runID string, p *Plugin, outcome Outcome) *Result {
	r := &Result{
		ID:               runID + "/" + p.Name,
		RunID:            runID,
		Plugin:           p.Name,
		Repository:       p.Repository,
		State:            p.State,
		Outcome:          outcome,
		JDK:              p.JDK,
		ChangedFiles:     append([]string(nil), p.ChangedFiles...),
		ChangeRequestURL: p.ChangeRequestURL,
		StartedAt:        p.StartedAt,
		FinishedAt:       p.FinishedAt,
	}
	for _, w := range p.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	for _, e := range p.Errors {
		r.Errors = append(r.Errors, e.Error())
	}
	return r
}
