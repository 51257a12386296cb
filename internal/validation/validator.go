// =============================================================================
// SENA Material Requisitions - Validation Engine
// =============================================================================
//
// This module decides whether a record may be saved. Two checks apply:
//   - Completeness: the header fields and the name, unit and description of
//     every material must be filled in.
//   - Duplicates: a material may not repeat an item already requested in the
//     same lot, nor another item of the record being saved.
//
// DUPLICATE RULES:
//   - Names and descriptions are compared trimmed and lower-cased.
//   - A name match or a description match alone is enough.
//   - Empty fields never match, and a material with both fields empty is
//     never a duplicate.
//   - Only records of the same lot are considered, excluding the record
//     being edited.
//
// ERROR HANDLING:
//   - Failures are returned as *DuplicateError or *IncompleteError, which
//     match ErrDuplicateItem and ErrIncompleteForm with errors.Is.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jllhz8912/sena/internal/metrics"
	"github.com/jllhz8912/sena/internal/types"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

var (
	// ErrDuplicateItem is matched by *DuplicateError.
	ErrDuplicateItem = errors.New("duplicate materials in lot")

	// ErrIncompleteForm is matched by *IncompleteError.
	ErrIncompleteForm = errors.New("mandatory fields are missing")
)

// DuplicateError lists the materials flagged as duplicates.
type DuplicateError struct {
	// Lot is the lot the record belongs to.
	Lot string

	// Materials are the flagged materials, in record order.
	Materials []types.Material
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	names := make([]string, len(e.Materials))
	for i, m := range e.Materials {
		names[i] = label(m)
	}
	return fmt.Sprintf("%s '%s': %s", ErrDuplicateItem, e.Lot, strings.Join(names, ", "))
}

// Is makes errors.Is(err, ErrDuplicateItem) hold.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateItem
}

// IncompleteError lists the mandatory fields left blank.
type IncompleteError struct {
	// Fields holds one entry per missing field, e.g. "Nombre Instructor" or
	// "Material 2: Unidad Medida".
	Fields []string
}

// Error implements the error interface.
func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIncompleteForm, strings.Join(e.Fields, ", "))
}

// Is makes errors.Is(err, ErrIncompleteForm) hold.
func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncompleteForm
}

// =============================================================================
// DUPLICATE DETECTOR
// =============================================================================

// Detector checks candidate materials against one lot.
type Detector struct {
	lot      string
	existing []types.Material
	batch    []types.Material
}

// NewDetector creates a Detector.
//
// PARAMETERS:
//   - records:   The persisted records.
//   - lot:       The target lot. Only records with exactly this lot count.
//   - editingID: The record being edited; its persisted copy is ignored.
//     Empty when creating a new record.
//   - batch:     The in-progress materials (the record being saved).
func NewDetector(records []types.Request, lot, editingID string, batch []types.Material) *Detector {
	d := &Detector{lot: lot, batch: batch}
	for _, r := range records {
		if r.LotType != lot || (editingID != "" && r.ID == editingID) {
			continue
		}
		d.existing = append(d.existing, r.Materials...)
	}
	return d
}

// IsDuplicate reports whether a material with the given name and
// description repeats a persisted material of the lot, or another batch
// material than selfID.
func (d *Detector) IsDuplicate(name, description, selfID string) bool {
	n := normalize(name)
	desc := normalize(description)
	if n == "" && desc == "" {
		return false
	}

	for _, m := range d.existing {
		if matches(m, n, desc) {
			return true
		}
	}
	for _, m := range d.batch {
		if m.ID != selfID && matches(m, n, desc) {
			return true
		}
	}
	return false
}

// Duplicates returns every batch material flagged by IsDuplicate.
func (d *Detector) Duplicates() []types.Material {
	var flagged []types.Material
	for _, m := range d.batch {
		if d.IsDuplicate(m.CodeName, m.TechnicalDescription, m.ID) {
			flagged = append(flagged, m)
		}
	}
	return flagged
}

// Screen filters candidates that would be created without user review.
// A candidate is rejected when it repeats a persisted material of the lot
// or a candidate accepted before it, so the first occurrence is kept.
func (d *Detector) Screen(candidates []types.Material) (accepted, rejected []types.Material) {
	for _, m := range candidates {
		n := normalize(m.CodeName)
		desc := normalize(m.TechnicalDescription)

		dup := false
		if n != "" || desc != "" {
			for _, pool := range [][]types.Material{d.existing, accepted} {
				for _, other := range pool {
					if matches(other, n, desc) {
						dup = true
						break
					}
				}
				if dup {
					break
				}
			}
		}

		if dup {
			rejected = append(rejected, m)
			continue
		}
		accepted = append(accepted, m)
	}

	if len(rejected) > 0 {
		metrics.DuplicatesTotal.Add(float64(len(rejected)))
	}
	return accepted, rejected
}

func matches(m types.Material, name, desc string) bool {
	return (name != "" && normalize(m.CodeName) == name) ||
		(desc != "" && normalize(m.TechnicalDescription) == desc)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// =============================================================================
// RECORD VALIDATION
// =============================================================================

// CheckComplete returns an *IncompleteError listing the blank mandatory
// fields of r, or nil.
func CheckComplete(r types.Request) error {
	var missing []string

	if strings.TrimSpace(r.InstructorName) == "" {
		missing = append(missing, "Nombre Instructor")
	}
	if strings.TrimSpace(r.ProgramType) == "" {
		missing = append(missing, "Programa Formación")
	}
	if strings.TrimSpace(r.LotType) == "" {
		missing = append(missing, "Lote (Categoría)")
	}
	if strings.TrimSpace(r.TrainingName) == "" {
		missing = append(missing, "Nombre Formación")
	}
	if len(r.Materials) == 0 {
		missing = append(missing, "Materiales")
	}

	for i, m := range r.Materials {
		prefix := fmt.Sprintf("Material %d: ", i+1)
		if strings.TrimSpace(m.CodeName) == "" {
			missing = append(missing, prefix+"Nombre Material")
		}
		if strings.TrimSpace(m.UnitOfMeasure) == "" {
			missing = append(missing, prefix+"Unidad Medida")
		}
		if strings.TrimSpace(m.TechnicalDescription) == "" {
			missing = append(missing, prefix+"Descripción Técnica")
		}
	}

	if len(missing) > 0 {
		return &IncompleteError{Fields: missing}
	}
	return nil
}

// Validate runs the save-time checks on r: duplicates first, then
// completeness.
//
// PARAMETERS:
//   - r:         The record about to be saved.
//   - records:   The persisted records.
//   - editingID: The id of the record being edited, or "" for a new one.
//
// RETURNS:
//   - nil, a *DuplicateError or an *IncompleteError.
func Validate(r types.Request, records []types.Request, editingID string) error {
	d := NewDetector(records, r.LotType, editingID, r.Materials)
	if dups := d.Duplicates(); len(dups) > 0 {
		metrics.DuplicatesTotal.Add(float64(len(dups)))
		return &DuplicateError{Lot: r.LotType, Materials: dups}
	}
	return CheckComplete(r)
}

func label(m types.Material) string {
	if strings.TrimSpace(m.CodeName) != "" {
		return m.CodeName
	}
	return m.TechnicalDescription
}
