// =============================================================================
// SENA Material Requisitions - Material Enrichment
// =============================================================================
//
// This module asks a text generation service for a technical description and
// an UNSPSC classification of a material.
//
// Enrichment is an assist, never a requirement: every failure (no API key,
// network error, unparsable reply) becomes an empty suggestion, and callers
// keep whatever the user already typed.
//
// =============================================================================

package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/jllhz8912/sena/internal/metrics"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// DefaultLot is the area named in the description prompt when the draft has
// no lot yet.
const DefaultLot = "General"

// ErrEnrichmentUnavailable is returned by a Service that cannot produce a
// suggestion. Suggest logs it and never returns it.
var ErrEnrichmentUnavailable = errors.New("enrichment unavailable")

// Classification is an UNSPSC code and its segment or family name.
type Classification struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Service generates material descriptions and classifications.
type Service interface {
	Describe(ctx context.Context, name, lot string) (string, error)
	Classify(ctx context.Context, name string) (Classification, error)
}

// =============================================================================
// GENAI SERVICE
// =============================================================================

// generateFunc sends one prompt and returns the reply text.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// GenAIService implements Service with the Gemini API.
type GenAIService struct {
	model    string
	generate generateFunc
}

// NewGenAIService creates a client for the Gemini API.
//
// PARAMETERS:
//   - ctx:    Context for client construction.
//   - apiKey: The API key. Must not be empty.
//   - model:  The generation model; DefaultModel when empty.
//
// RETURNS:
//   - The service, or an error if the client cannot be created.
func NewGenAIService(ctx context.Context, apiKey, model string) (*GenAIService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrEnrichmentUnavailable)
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	s := &GenAIService{model: model}
	s.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return s, nil
}

// Describe implements Service.
func (s *GenAIService) Describe(ctx context.Context, name, lot string) (string, error) {
	reply, err := s.generate(ctx, describePrompt(name, lot))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEnrichmentUnavailable, err)
	}
	return strings.TrimSpace(reply), nil
}

// Classify implements Service.
func (s *GenAIService) Classify(ctx context.Context, name string) (Classification, error) {
	reply, err := s.generate(ctx, classifyPrompt(name))
	if err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrEnrichmentUnavailable, err)
	}
	return ParseClassification(reply)
}

func describePrompt(name, lot string) string {
	return fmt.Sprintf(`Contexto: Soy un instructor del SENA del área de %s.
Tarea: Genera una descripción técnica detallada, profesional y completa para un material de formación llamado "%s".
Incluye especificaciones típicas (material, dimensiones, uso) si aplica.
La respuesta debe ser solo el texto de la descripción, sin introducciones.`, lot, name)
}

func classifyPrompt(name string) string {
	return fmt.Sprintf(`Identify the most likely UNSPSC code (8 digits) and the standard UNSPSC Segment/Family name for: "%s".
Return ONLY a JSON object with this format: {"code": "12345678", "name": "Segment Name"}. Do not add markdown code blocks.`, name)
}

// ParseClassification decodes a classification reply, tolerating markdown
// code fences around the JSON object.
func ParseClassification(reply string) (Classification, error) {
	text := strings.ReplaceAll(reply, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var c Classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return Classification{}, fmt.Errorf("%w: unparsable classification: %v", ErrEnrichmentUnavailable, err)
	}
	c.Code = strings.TrimSpace(c.Code)
	c.Name = strings.TrimSpace(c.Name)
	return c, nil
}

// =============================================================================
// DISABLED SERVICE
// =============================================================================

// Disabled is the Service used when no API key is configured.
type Disabled struct{}

// Describe implements Service.
func (Disabled) Describe(context.Context, string, string) (string, error) {
	return "", ErrEnrichmentUnavailable
}

// Classify implements Service.
func (Disabled) Classify(context.Context, string) (Classification, error) {
	return Classification{}, ErrEnrichmentUnavailable
}

// New returns a GenAIService, or Disabled when apiKey is empty or the client
// cannot be created.
func New(ctx context.Context, apiKey, model string, logger *zap.Logger) Service {
	if apiKey == "" {
		logger.Debug("enrichment disabled: no API key")
		return Disabled{}
	}
	svc, err := NewGenAIService(ctx, apiKey, model)
	if err != nil {
		logger.Warn("enrichment disabled", zap.Error(err))
		return Disabled{}
	}
	return svc
}

// =============================================================================
// SUGGESTIONS
// =============================================================================

// Suggestion is the combined result of both requests. Fields the service
// could not produce are empty.
type Suggestion struct {
	Description string `json:"description"`
	Code        string `json:"code"`
	Name        string `json:"name"`
}

// IsEmpty reports whether nothing was suggested.
func (s Suggestion) IsEmpty() bool {
	return s.Description == "" && s.Code == "" && s.Name == ""
}

// Suggest runs the description and classification requests concurrently and
// waits for both. Failures are logged at debug level and leave the
// corresponding fields empty.
//
// PARAMETERS:
//   - ctx:    Context for both requests.
//   - svc:    The generation service.
//   - name:   The material name. An empty name yields an empty suggestion.
//   - lot:    The draft's effective lot; DefaultLot when empty.
//   - logger: Receives the degraded failures.
func Suggest(ctx context.Context, svc Service, name, lot string, logger *zap.Logger) Suggestion {
	var out Suggestion
	name = strings.TrimSpace(name)
	if name == "" || svc == nil {
		return out
	}
	if strings.TrimSpace(lot) == "" {
		lot = DefaultLot
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var g errgroup.Group
	g.Go(func() error {
		desc, err := svc.Describe(ctx, name, lot)
		if err != nil {
			degrade(logger, "describe", name, err)
			return nil
		}
		out.Description = desc
		return nil
	})
	g.Go(func() error {
		c, err := svc.Classify(ctx, name)
		if err != nil {
			degrade(logger, "classify", name, err)
			return nil
		}
		out.Code = c.Code
		out.Name = c.Name
		return nil
	})
	_ = g.Wait()

	return out
}

func degrade(logger *zap.Logger, kind, name string, err error) {
	metrics.EnrichmentFailuresTotal.WithLabelValues(kind).Inc()
	logger.Debug("enrichment degraded to no suggestion",
		zap.String("kind", kind),
		zap.String("material", name),
		zap.Error(err),
	)
}
