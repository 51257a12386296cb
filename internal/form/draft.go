// =============================================================================
// SENA Material Requisitions - Draft Record
// =============================================================================
//
// This module holds the record being created or edited before it is saved:
// its header, its materials and, when editing, the identity of the record it
// will replace.
//
// LIFECYCLE:
//  1. New() starts with one blank placeholder material; Edit() loads a record
//  2. Materials are added, changed, removed, enriched or imported
//  3. Validate() runs the duplicate and completeness checks
//  4. Submit() saves: replace when editing, prepend otherwise
//
// =============================================================================

package form

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jllhz8912/sena/internal/config"
	"github.com/jllhz8912/sena/internal/enrichment"
	"github.com/jllhz8912/sena/internal/importer"
	"github.com/jllhz8912/sena/internal/types"
	"github.com/jllhz8912/sena/internal/validation"
)

// MaxImageBytes is the largest image accepted by AttachImage.
const MaxImageBytes = 1024 * 1024

var (
	// ErrMaterialNotFound is returned for an unknown material id.
	ErrMaterialNotFound = errors.New("material not found in draft")

	// ErrImageTooLarge is returned when an image exceeds MaxImageBytes.
	ErrImageTooLarge = errors.New("image is larger than 1MB")
)

// Store is the part of the record store a draft saves into.
type Store interface {
	All() []types.Request
	Add(ctx context.Context, r types.Request) error
	Replace(ctx context.Context, r types.Request) error
}

// Draft is an unsaved record.
type Draft struct {
	Instructor  string
	Program     string
	Lot         string
	IsCustomLot bool
	CustomLot   string
	Training    string
	Materials   []types.Material

	// EditingID is the id of the record being edited, empty for a new one.
	EditingID string

	// CreatedAt is kept from the edited record.
	CreatedAt int64

	newID func() string
}

// New returns an empty draft with one placeholder material.
func New() *Draft {
	d := &Draft{newID: uuid.NewString}
	d.AddMaterial()
	return d
}

// Edit returns a draft loaded from an existing record. A lot that is not in
// the catalog is loaded as a custom lot.
func Edit(r types.Request, catalog *config.Catalog) *Draft {
	d := &Draft{
		Instructor: r.InstructorName,
		Program:    r.ProgramType,
		Training:   r.TrainingName,
		Materials:  r.Clone().Materials,
		EditingID:  r.ID,
		CreatedAt:  r.CreatedAt,
		newID:      uuid.NewString,
	}
	if catalog.IsCatalogLot(r.LotType) {
		d.Lot = r.LotType
	} else {
		d.IsCustomLot = true
		d.CustomLot = r.LotType
	}
	return d
}

// IsEditing reports whether the draft replaces an existing record.
func (d *Draft) IsEditing() bool {
	return d.EditingID != ""
}

// EffectiveLot returns the custom lot when one is selected, else the catalog
// lot.
func (d *Draft) EffectiveLot() string {
	return d.Context().EffectiveLot()
}

// Context returns the draft header as an import seed.
func (d *Draft) Context() importer.Context {
	return importer.Context{
		Instructor:  d.Instructor,
		Program:     d.Program,
		Lot:         d.Lot,
		IsCustomLot: d.IsCustomLot,
		CustomLot:   d.CustomLot,
		Training:    d.Training,
	}
}

// =============================================================================
// MATERIALS
// =============================================================================

// AddMaterial appends a blank material and returns its id.
func (d *Draft) AddMaterial() string {
	id := d.nextID()
	d.Materials = append(d.Materials, types.Material{ID: id})
	return id
}

// RemoveMaterial removes a material. It reports whether one was removed.
func (d *Draft) RemoveMaterial(id string) bool {
	i := d.indexOf(id)
	if i < 0 {
		return false
	}
	d.Materials = append(d.Materials[:i], d.Materials[i+1:]...)
	return true
}

// UpdateMaterial replaces the material with the same id.
func (d *Draft) UpdateMaterial(m types.Material) error {
	i := d.indexOf(m.ID)
	if i < 0 {
		return fmt.Errorf("material %s: %w", m.ID, ErrMaterialNotFound)
	}
	d.Materials[i] = m
	return nil
}

// AttachImage embeds an image in a material as a data URL.
func (d *Draft) AttachImage(id string, data []byte) error {
	i := d.indexOf(id)
	if i < 0 {
		return fmt.Errorf("material %s: %w", id, ErrMaterialNotFound)
	}
	if len(data) > MaxImageBytes {
		return ErrImageTooLarge
	}
	mime := http.DetectContentType(data)
	d.Materials[i].ImageURL = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return nil
}

// ApplyGroup merges an import group into the draft: non-empty header values
// overwrite the draft's, the lone placeholder material is dropped and the
// group materials are appended.
func (d *Draft) ApplyGroup(g importer.Group) {
	h := g.Header
	if h.Instructor != "" {
		d.Instructor = h.Instructor
	}
	if h.Program != "" {
		d.Program = h.Program
	}
	if h.Training != "" {
		d.Training = h.Training
	}
	if h.IsCustomLot {
		d.IsCustomLot = true
		d.CustomLot = h.CustomLot
		d.Lot = ""
	} else if h.Lot != "" {
		d.IsCustomLot = false
		d.Lot = h.Lot
	}

	if len(d.Materials) == 1 && d.Materials[0].IsPlaceholder() {
		d.Materials = nil
	}
	d.Materials = append(d.Materials, g.Materials...)
}

// EnrichMaterial asks svc for a description and classification of a
// material and fills only its blank description and UNSPSC code. The
// suggested name is never used since a name is required to ask. A material
// without a name is left unchanged.
func (d *Draft) EnrichMaterial(ctx context.Context, svc enrichment.Service, id string, logger *zap.Logger) error {
	i := d.indexOf(id)
	if i < 0 {
		return fmt.Errorf("material %s: %w", id, ErrMaterialNotFound)
	}
	m := d.Materials[i]
	if strings.TrimSpace(m.CodeName) == "" {
		return nil
	}

	s := enrichment.Suggest(ctx, svc, m.CodeName, d.EffectiveLot(), logger)
	if m.TechnicalDescription == "" {
		m.TechnicalDescription = s.Description
	}
	if m.UNSPSCCode == "" {
		m.UNSPSCCode = s.Code
	}
	d.Materials[i] = m
	return nil
}

func (d *Draft) nextID() string {
	if d.newID == nil {
		return uuid.NewString()
	}
	return d.newID()
}

func (d *Draft) indexOf(id string) int {
	for i, m := range d.Materials {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// SAVING
// =============================================================================

// Duplicates returns the draft materials that repeat an item of the lot or
// of the draft itself.
func (d *Draft) Duplicates(records []types.Request) []types.Material {
	return validation.NewDetector(records, d.EffectiveLot(), d.EditingID, d.Materials).Duplicates()
}

// Validate runs the save-time checks against the persisted records.
func (d *Draft) Validate(records []types.Request) error {
	return validation.Validate(d.record(), records, d.EditingID)
}

// Build returns the record the draft would save. A new draft gets a fresh id
// and now as its creation time.
func (d *Draft) Build(now time.Time) types.Request {
	r := d.record()
	if r.ID == "" {
		r.ID = d.nextID()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = now.UnixMilli()
	}
	return r
}

// Submit validates and saves the draft.
//
// PARAMETERS:
//   - ctx:   Context for the store write.
//   - store: The record store.
//   - now:   Creation time for a new record.
//
// RETURNS:
//   - The saved record.
//   - A *validation.DuplicateError, a *validation.IncompleteError or a
//     store error.
func (d *Draft) Submit(ctx context.Context, store Store, now time.Time) (types.Request, error) {
	if err := d.Validate(store.All()); err != nil {
		return types.Request{}, err
	}

	r := d.Build(now)
	if d.IsEditing() {
		if err := store.Replace(ctx, r); err != nil {
			return types.Request{}, fmt.Errorf("failed to save record: %w", err)
		}
		return r, nil
	}

	if err := store.Add(ctx, r); err != nil {
		return types.Request{}, fmt.Errorf("failed to save record: %w", err)
	}
	// The draft now refers to the saved record.
	d.EditingID = r.ID
	d.CreatedAt = r.CreatedAt
	return r, nil
}

func (d *Draft) record() types.Request {
	return types.Request{
		ID:             d.EditingID,
		InstructorName: strings.TrimSpace(d.Instructor),
		ProgramType:    d.Program,
		LotType:        d.EffectiveLot(),
		TrainingName:   strings.TrimSpace(d.Training),
		Materials:      append([]types.Material(nil), d.Materials...),
		CreatedAt:      d.CreatedAt,
	}
}
