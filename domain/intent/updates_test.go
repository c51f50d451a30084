package intent

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldUpdatesJSONKeepsOrder(t *testing.T) {
	var u FieldUpdates
	require.NoError(t, json.Unmarshal([]byte(`{"zeta": 1, "alpha": "x", "mid": null}`), &u))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, u.Fields())
	assert.Equal(t, json.Number("1"), u[0].Value)

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"x","mid":null}`, string(out))
}

func TestFieldUpdatesJSONAcceptsList(t *testing.T) {
	var u FieldUpdates
	require.NoError(t, json.Unmarshal([]byte(`[{"field":"quantity","value":"300"}]`), &u))
	require.Len(t, u, 1)
	assert.Equal(t, "quantity", u[0].Field)

	assert.Error(t, json.Unmarshal([]byte(`42`), &u))
}

func TestParseUpdatesShapes(t *testing.T) {
	u, err := ParseUpdates(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, u.Fields())

	u, err = ParseUpdates([]any{map[string]any{"field": "quantity", "value": 300}})
	require.NoError(t, err)
	v, ok := u.Get("quantity")
	require.True(t, ok)
	assert.Equal(t, 300, v)

	u, err = ParseUpdates(`{"status":"INACTIVE"}`)
	require.NoError(t, err)
	assert.Equal(t, "INACTIVE", u.Map()["status"])

	u, err = ParseUpdates(nil)
	require.NoError(t, err)
	assert.True(t, u.IsEmpty())

	_, err = ParseUpdates([]any{"quantity"})
	assert.Error(t, err)
	_, err = ParseUpdates(3)
	assert.Error(t, err)
}

func TestFieldUpdatesWithReplacesInPlace(t *testing.T) {
	u := FieldUpdates{{Field: "a", Value: 1}, {Field: "b", Value: 2}}
	got := u.With("a", 9).With("c", 3)

	assert.Equal(t, []string{"a", "b", "c"}, got.Fields())
	assert.Equal(t, 9, got.Map()["a"])
	assert.Equal(t, 1, u.Map()["a"], "receiver must not change")
}

func TestMutationRecordUndoAndCopy(t *testing.T) {
	old := map[string]any{"quantity": "500"}
	next := map[string]any{"quantity": "300"}
	rec := NewMutationRecord(&widget{id: "w1", code: "W-1"}, ActionUpdated, old, next, nil, "u1", time.Now())

	old["quantity"] = "tampered"
	assert.Equal(t, "500", rec.Changes.OldValues["quantity"])
	assert.Equal(t, FieldUpdates{{Field: "quantity", Value: "500"}}, rec.UndoUpdates())
	assert.Equal(t, []string{"quantity"}, rec.Fields())

	undo := UndoSuggestion(rec)
	assert.Equal(t, "UNDO", undo.Code)
	assert.Equal(t, "w1", undo.Params[KeyEntityID])
}

func TestEngineErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{NewUnknownEntityTypeError("X"), ErrUnknownEntityType},
		{NewAmbiguousReferenceError(EntityMaterialBatch), ErrAmbiguousReference},
		{NewNotFoundError(EntityMaterialBatch, "MB-1"), ErrNotFound},
		{NewMissingFieldsError("quantity"), ErrMissingRequiredField},
		{NewInvalidFieldValueError("quantity", errors.New("bad")), ErrInvalidFieldValue},
		{NewUnsupportedOperationError("DELETE"), ErrUnsupportedOperation},
		{NewTokenNotFoundError(), ErrTokenNotFound},
		{NewTokenExpiredError(), ErrTokenExpired},
		{NewTokenAlreadyUsedError(), ErrTokenAlreadyUsed},
		{NewInternalError("save", errors.New("disk full")), ErrInternalFailure},
		{&ValidationError{}, ErrValidationRejected},
	}
	for _, c := range cases {
		assert.ErrorIs(t, c.err, c.sentinel, c.err.Error())
	}

	assert.Equal(t, []string{"quantity", "unit"}, MissingFields(NewMissingFieldsError("quantity", "unit")))
	assert.NotContains(t, NewInternalError("save", errors.New("disk full")).Error(), "disk full")
	assert.Contains(t, NewTokenExpiredError().Error(), "retry the operation from the start")
}

func TestValidationResultSeverity(t *testing.T) {
	r := NewValidationResult([]Violation{{Rule: "r1", Message: "careful", Severity: SeverityWarn}}, nil)
	assert.True(t, r.Valid)
	assert.Len(t, r.Warnings(), 1)

	r = NewValidationResult([]Violation{
		{Rule: "r1", Message: "careful", Severity: SeverityWarn},
		{Rule: "r2", Message: "stock too low", Severity: SeverityBlock, Hint: "reduce the quantity"},
	}, []string{"check the receipt"})
	assert.False(t, r.Valid)
	assert.Len(t, r.Blocking(), 1)
	assert.Contains(t, r.Summary(), "reduce the quantity")
	assert.Contains(t, (&ValidationError{Result: r}).Error(), "stock too low")

	p, err := ParseValidationPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailOpen, p)
	p, err = ParseValidationPolicy("FAIL_CLOSED")
	require.NoError(t, err)
	assert.Equal(t, FailClosed, p)
	_, err = ParseValidationPolicy("maybe")
	assert.Error(t, err)
}

func TestOperationFactLookupAndImmutability(t *testing.T) {
	related := map[string]int64{"productionBatches": 2}
	fact := NewOperationFact(FactInput{
		EntityType:    EntityProductType,
		EntityID:      "pt1",
		CurrentStatus: "ACTIVE",
		TargetStatus:  "INACTIVE",
		Related:       related,
		Updates:       FieldUpdates{{Field: "status", Value: "inactive"}},
		Proposed:      map[string]any{"status": "INACTIVE"},
	})
	related["productionBatches"] = 0

	v, ok := fact.Lookup("related.productionBatches")
	require.True(t, ok)
	assert.Equal(t, int64(2), v)

	v, ok = fact.Lookup("updates.status")
	require.True(t, ok)
	assert.Equal(t, "inactive", v)

	v, ok = fact.Lookup("proposed.status")
	require.True(t, ok)
	assert.Equal(t, "INACTIVE", v)

	_, ok = fact.Lookup("proposed.colour")
	assert.False(t, ok)
	assert.True(t, fact.IsStatusTransition())

	r := fact.Related()
	r["productionBatches"] = 99
	assert.Equal(t, int64(2), fact.Related()["productionBatches"])
}
