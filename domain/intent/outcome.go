package intent

import (
	"time"
)

// Status Outcome status of one handler invocation
type Status string

const (
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
	StatusNeedMoreInfo     Status = "NEED_MORE_INFO"
	StatusNeedConfirm      Status = "NEED_CONFIRM"
	StatusValidationFailed Status = "VALIDATION_FAILED"
	StatusPreview          Status = "PREVIEW"
)

// ConfirmableAction Pending mutation the caller can approve with Token
type ConfirmableAction struct {
	Token            string         `json:"token"`
	Description      string         `json:"description"`
	ExpiresInSeconds int64          `json:"expiresInSeconds"`
	PreviewData      map[string]any `json:"previewData,omitempty"`

	// Informational is set when the token was not persisted; confirming it
	// always fails with "not found".
	Informational bool `json:"informational,omitempty"`
}

// SuggestedAction Follow-up the caller may offer the user
type SuggestedAction struct {
	Code        string         `json:"actionCode"`
	Name        string         `json:"actionName"`
	Description string         `json:"description,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// Outcome Standard result of every dispatch
type Outcome struct {
	IntentRecognized  bool               `json:"intentRecognized"`
	IntentCode        string             `json:"intentCode"`
	IntentName        string             `json:"intentName,omitempty"`
	IntentCategory    Category           `json:"intentCategory"`
	Status            Status             `json:"status"`
	Message           string             `json:"message"`
	FormattedText     string             `json:"formattedText,omitempty"`
	ResultData        any                `json:"resultData,omitempty"`
	AffectedEntities  []MutationRecord   `json:"affectedEntities,omitempty"`
	ConfirmableAction *ConfirmableAction `json:"confirmableAction,omitempty"`
	SuggestedActions  []SuggestedAction  `json:"suggestedActions,omitempty"`
	RequiresApproval  bool               `json:"requiresApproval,omitempty"`
	MissingFields     []string           `json:"missingFields,omitempty"`
	Validation        *ValidationResult  `json:"validation,omitempty"`
	ErrorCode         string             `json:"errorCode,omitempty"`
	ExecutedAt        time.Time          `json:"executedAt"`
}

// NewOutcome starts an outcome for req with the given status.
func NewOutcome(req Request, status Status, message string) Outcome {
	return Outcome{
		IntentRecognized: req.IntentCode != "",
		IntentCode:       req.IntentCode,
		IntentCategory:   req.Category,
		Status:           status,
		Message:          message,
	}
}

// NeedMoreInfo asks the caller to supply the named fields.
func NeedMoreInfo(req Request, message string, fields ...string) Outcome {
	o := NewOutcome(req, StatusNeedMoreInfo, message)
	o.MissingFields = append([]string(nil), fields...)
	return o
}

// Succeeded reports whether the outcome left the system in the requested state.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusCompleted || o.Status == StatusPreview
}

// UndoSuggestion builds the follow-up that reverts rec.
func UndoSuggestion(rec MutationRecord) SuggestedAction {
	return SuggestedAction{
		Code:        "UNDO",
		Name:        "Undo",
		Description: "Restore " + rec.EntityName + " to its previous values",
		Params: map[string]any{
			KeyEntityType: string(rec.EntityType),
			KeyEntityID:   rec.EntityID,
			KeyUpdates:    rec.UndoUpdates(),
		},
	}
}
