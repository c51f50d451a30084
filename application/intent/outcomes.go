package intent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"factoryops/domain/intent"
	apperrors "factoryops/pkg/errors"
)

// ============================================================================
// Success outcomes
// ============================================================================

// CompletedOutcome reports a committed change with an undo suggestion.
func CompletedOutcome(req intent.Request, res Result) intent.Outcome {
	rec := res.Record
	o := intent.NewOutcome(req, intent.StatusCompleted, completedMessage(rec))
	o.AffectedEntities = []intent.MutationRecord{rec}
	o.SuggestedActions = []intent.SuggestedAction{intent.UndoSuggestion(rec)}
	o.FormattedText = formatChanges(rec)
	o.ResultData = map[string]any{
		"entityType": rec.EntityType,
		"entityId":   rec.EntityID,
		"entityName": rec.EntityName,
		"action":     rec.Action,
		"changes":    rec.Changes,
	}
	if len(res.Validation.Violations) > 0 || len(res.Validation.Recommendations) > 0 || res.Validation.Degraded {
		v := res.Validation
		o.Validation = &v
	}
	return o
}

func completedMessage(rec intent.MutationRecord) string {
	msg := fmt.Sprintf("%s %s: %s", strings.ToLower(string(rec.Action)), rec.EntityName, strings.Join(rec.Fields(), ", "))
	if len(rec.Skipped) > 0 {
		msg += fmt.Sprintf(" (ignored unknown fields: %s)", strings.Join(rec.Skipped, ", "))
	}
	return msg
}

func formatChanges(rec intent.MutationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", rec.Action, rec.EntityName)
	for _, f := range rec.Fields() {
		fmt.Fprintf(&b, "  %s: %v -> %v\n", f, display(rec.Changes.OldValues[f]), display(rec.Changes.NewValues[f]))
	}
	return strings.TrimRight(b.String(), "\n")
}

func display(v any) any {
	if v == nil {
		return "(empty)"
	}
	return v
}

// PreviewOutcome reports a parked change. status is PREVIEW for an explicit
// dry run and NEED_CONFIRM when the commit path asked for confirmation.
func PreviewOutcome(req intent.Request, status intent.Status, pr PreviewResult, at time.Time) intent.Outcome {
	tok := pr.Token
	msg := fmt.Sprintf("please confirm the change to %s", pr.EntityName)
	if tok.Ephemeral {
		msg = fmt.Sprintf("preview of the change to %s (confirmation is unavailable right now)", pr.EntityName)
	}
	o := intent.NewOutcome(req, status, msg)
	o.RequiresApproval = status == intent.StatusNeedConfirm

	current := make(map[string]any, len(pr.Proposed))
	for k := range pr.Proposed {
		current[k] = pr.Current[k]
	}
	data := map[string]any{
		"entityType": tok.EntityType,
		"entityId":   tok.EntityID,
		"entityName": pr.EntityName,
		"operation":  tok.Operation,
		"current":    current,
		"proposed":   pr.Proposed,
	}
	if len(pr.Skipped) > 0 {
		data["skippedFields"] = pr.Skipped
	}
	if w := pr.Validation.Warnings(); len(w) > 0 {
		data["warnings"] = w
	}
	if len(pr.Validation.Recommendations) > 0 {
		data["recommendations"] = pr.Validation.Recommendations
	}

	o.ConfirmableAction = &intent.ConfirmableAction{
		Token:            tok.Value,
		Description:      describe(tok.Operation, pr),
		ExpiresInSeconds: tok.RemainingSeconds(at),
		PreviewData:      data,
		Informational:    tok.Ephemeral,
	}
	o.FormattedText = formatProposal(pr)
	return o
}

func describe(operation string, pr PreviewResult) string {
	fields := make([]string, 0, len(pr.Proposed))
	for k := range pr.Proposed {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s %s (%s)", strings.ToLower(operation), pr.EntityName, strings.Join(fields, ", "))
}

func formatProposal(pr PreviewResult) string {
	fields := make([]string, 0, len(pr.Proposed))
	for k := range pr.Proposed {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", pr.EntityName)
	for _, f := range fields {
		fmt.Fprintf(&b, "  %s: %v -> %v\n", f, display(pr.Current[f]), display(pr.Proposed[f]))
	}
	if s := pr.Validation.Summary(); s != "" {
		b.WriteString(s)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ============================================================================
// Error outcomes
// ============================================================================

const genericFailure = "the operation could not be completed, nothing was changed"

// ErrorOutcome converts any error into an outcome. Messages of engine errors
// are shown as they are; anything else is replaced with a generic text.
func ErrorOutcome(req intent.Request, err error) intent.Outcome {
	code := apperrors.Code(err)

	var verr *intent.ValidationError
	switch {
	case errors.As(err, &verr):
		o := intent.NewOutcome(req, intent.StatusValidationFailed, verr.Error())
		res := verr.Result
		o.Validation = &res
		o.FormattedText = res.Summary()
		o.ErrorCode = string(code)
		return o

	case errors.Is(err, intent.ErrMissingRequiredField),
		errors.Is(err, intent.ErrInvalidFieldValue),
		errors.Is(err, intent.ErrAmbiguousReference):
		o := intent.NeedMoreInfo(req, err.Error(), intent.MissingFields(err)...)
		o.ErrorCode = string(code)
		return o
	}

	msg := genericFailure
	if code != apperrors.CodeInternal || errors.Is(err, intent.ErrInternalFailure) {
		msg = apperrors.MapDomainError(err).Message
	}
	o := intent.NewOutcome(req, intent.StatusFailed, msg)
	o.ErrorCode = string(code)
	return o
}
