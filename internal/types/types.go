// =============================================================================
// SENA Material Requisitions - Shared Types
// =============================================================================
//
// This package contains the data model shared across modules to avoid
// import cycles. Types defined here are used by:
//   - store
//   - importer
//   - validation
//   - report
//   - consolidation
//   - exporter
//
// The JSON field names match the submission files exchanged between
// instructors and coordinators, so exported files stay readable by older
// copies of the tool.
//
// =============================================================================

package types

import (
	"strings"
	"time"
)

// =============================================================================
// MATERIAL
// =============================================================================

// Material is a single requested item.
type Material struct {
	// ID is an opaque unique identifier (a UUID string).
	ID string `json:"id"`

	// UNSPSCCode is the optional classification code, conventionally 8 digits.
	UNSPSCCode string `json:"unspscCode,omitempty"`

	// CodeName is the short material name.
	CodeName string `json:"codeName"`

	// TechnicalDescription is the long technical description.
	TechnicalDescription string `json:"technicalDescription"`

	// UnitOfMeasure is a catalog unit label or free text.
	UnitOfMeasure string `json:"unitOfMeasure"`

	// ImageURL is an embedded data URL or an external URL.
	ImageURL string `json:"imageUrl,omitempty"`
}

// IsComplete reports whether the mandatory fields (name, unit and
// description) are all present.
func (m Material) IsComplete() bool {
	return strings.TrimSpace(m.CodeName) != "" &&
		strings.TrimSpace(m.UnitOfMeasure) != "" &&
		strings.TrimSpace(m.TechnicalDescription) != ""
}

// IsPlaceholder reports whether the material is the blank entry a new form
// starts with. A material is a placeholder iff both its name and its
// description are empty.
func (m Material) IsPlaceholder() bool {
	return strings.TrimSpace(m.CodeName) == "" && strings.TrimSpace(m.TechnicalDescription) == ""
}

// =============================================================================
// REQUISITION RECORD
// =============================================================================

// Request is one requisition record: an instructor's list of materials for
// a training within a program and lot.
type Request struct {
	ID             string     `json:"id"`
	InstructorName string     `json:"instructorName"`
	ProgramType    string     `json:"programType"`
	LotType        string     `json:"lotType"`
	TrainingName   string     `json:"trainingName"`
	Materials      []Material `json:"materials"`

	// CreatedAt is the creation time in Unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
}

// Created returns CreatedAt as a time.Time.
func (r Request) Created() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

// IsVoid reports whether the record has no materials. Void records must
// never be persisted.
func (r Request) IsVoid() bool {
	return len(r.Materials) == 0
}

// Clone returns a deep copy of the record.
func (r Request) Clone() Request {
	c := r
	c.Materials = append([]Material(nil), r.Materials...)
	return c
}

// CountMaterials sums the materials of all records.
func CountMaterials(records []Request) int {
	total := 0
	for _, r := range records {
		total += len(r.Materials)
	}
	return total
}
