/*
Package classifier Optional intent slot extraction backed by Gemini.

The engine calls it only when structured intent context lacks the entity
slots it needs. Any failure here is reported to the caller, which carries on
without the classifier's help.
*/
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"factoryops/config"
	"factoryops/domain/intent"
	"factoryops/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// ErrNoInput is returned when the request carries no free text to classify.
var ErrNoInput = errors.New("classifier: request has no user input")

const instruction = `You extract structured slots from a factory operator's request.
Reply with one JSON object and nothing else, using only these keys:
  entityType        one of PRODUCT_TYPE, PRODUCTION_PLAN, PRODUCTION_BATCH, MATERIAL_BATCH
  entityId          internal id, only when the user gave one
  entityIdentifier  business code such as "MB-2024-001" or "PT-F001-001"
  operation         USE, RESERVE, RELEASE, CONSUME or ADJUST for material stock requests
  quantity          number, for material stock requests
  updates           object of field name to new value, for edits
Omit any key you cannot determine. Never invent identifiers.`

// generateFunc sends one prompt and returns the model's text reply.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// Gemini intent.SlotExtractor using the Gemini API
type Gemini struct {
	model    string
	timeout  time.Duration
	generate generateFunc
}

// NewGemini creates the classifier client.
func NewGemini(ctx context.Context, cfg config.ClassifierConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0),
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return newGemini(model, cfg.Timeout, generate), nil
}

func newGemini(model string, timeout time.Duration, generate generateFunc) *Gemini {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gemini{model: model, timeout: timeout, generate: generate}
}

// ExtractSlots asks the model for the entity slots in req.UserInput.
func (g *Gemini) ExtractSlots(ctx context.Context, req intent.Request) (intent.Slots, error) {
	text := strings.TrimSpace(req.UserInput)
	if text == "" {
		return intent.Slots{}, ErrNoInput
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	reply, err := g.generate(ctx, prompt(req))
	if err != nil {
		return intent.Slots{}, fmt.Errorf("gemini generate: %w", err)
	}

	slots, err := parseSlots(reply)
	if err != nil {
		return intent.Slots{}, err
	}
	logger.Debug("Slots extracted",
		zap.String("model", g.model),
		zap.String("intent_code", req.IntentCode),
		zap.String("entity_type", slots.EntityType),
		zap.Duration("took", time.Since(start)),
	)
	return slots, nil
}

func prompt(req intent.Request) string {
	var b strings.Builder
	if req.IntentCode != "" {
		fmt.Fprintf(&b, "Intent: %s\n", req.IntentCode)
	}
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	fmt.Fprintf(&b, "Request: %s", strings.TrimSpace(req.UserInput))
	return b.String()
}

// parseSlots accepts the JSON object, tolerating a markdown code fence.
func parseSlots(reply string) (intent.Slots, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return intent.Slots{}, fmt.Errorf("gemini returned an empty reply")
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var slots intent.Slots
	if err := dec.Decode(&slots); err != nil {
		return intent.Slots{}, fmt.Errorf("decode slots: %w", err)
	}
	slots.EntityType = strings.TrimSpace(slots.EntityType)
	slots.EntityID = strings.TrimSpace(slots.EntityID)
	slots.EntityIdentifier = strings.TrimSpace(slots.EntityIdentifier)
	slots.Operation = strings.ToUpper(strings.TrimSpace(slots.Operation))
	return slots, nil
}

var _ intent.SlotExtractor = (*Gemini)(nil)
