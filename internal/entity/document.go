package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/legal-simplifier/constants"
)

// ErrTerminalState is returned when a processed or failed document is
// processed again without force.
var ErrTerminalState = errors.New("document already in terminal state")

// Document is an uploaded legal document plus its derived artifacts.
type Document struct {
	ID             uuid.UUID                `json:"id"`
	Filename       string                   `json:"filename"`
	DeclaredFormat string                   `json:"declared_format"`
	SourcePath     string                   `json:"source_path"`
	ContentHash    string                   `json:"content_hash"`
	FileSize       int64                    `json:"file_size"`
	Status         constants.DocumentStatus `json:"status"`
	OriginalText   string                   `json:"original_text"`
	SummaryText    string                   `json:"summary_text"`
	SimplifiedText string                   `json:"simplified_text"`
	Entities       []Entity                 `json:"entities"`
	Degraded       bool                     `json:"degraded"`
	ErrorMessage   string                   `json:"error_message,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	ProcessedAt    *time.Time               `json:"processed_at,omitempty"`
}

// Entity is a tagged span of the original text; OriginalText[Start:End] == Value.
type Entity struct {
	Type  constants.EntityType `json:"type"`
	Value string               `json:"value"`
	Start int                  `json:"start"`
	End   int                  `json:"end"`
}

// Artifacts is the output of one successful pipeline run.
type Artifacts struct {
	OriginalText   string   `json:"original_text"`
	SummaryText    string   `json:"summary_text"`
	SimplifiedText string   `json:"simplified_text"`
	Entities       []Entity `json:"entities"`
	Degraded       bool     `json:"degraded"`
	Method         string   `json:"method"`
}

// CanProcess reports whether a pipeline run may start for d.
func (d *Document) CanProcess(force bool) error {
	if d.Status == constants.StatusUploaded || force {
		return nil
	}
	return fmt.Errorf("%w: %s is %s", ErrTerminalState, d.ID, d.Status)
}

// Complete applies all artifacts together and marks d processed.
func (d *Document) Complete(a Artifacts, at time.Time) {
	entities := a.Entities
	if entities == nil {
		entities = []Entity{}
	}
	d.OriginalText = a.OriginalText
	d.SummaryText = a.SummaryText
	d.SimplifiedText = a.SimplifiedText
	d.Entities = entities
	d.Degraded = a.Degraded
	d.ErrorMessage = ""
	d.Status = constants.StatusProcessed
	d.UpdatedAt = at
	d.ProcessedAt = &at
}

// Fail marks d failed and clears any artifacts from a previous run.
func (d *Document) Fail(cause error, at time.Time) {
	d.OriginalText = ""
	d.SummaryText = ""
	d.SimplifiedText = ""
	d.Entities = []Entity{}
	d.Degraded = false
	d.ErrorMessage = ""
	if cause != nil {
		d.ErrorMessage = cause.Error()
	}
	d.Status = constants.StatusFailed
	d.UpdatedAt = at
	d.ProcessedAt = &at
}
