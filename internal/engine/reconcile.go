package engine

import (
	"strings"

	"github.com/billsense/billsense/internal/model"
)

// FallbackCategory is written to records whose fresh classification did not
// match any allowed category.
const FallbackCategory = "other"

// ReconcileDecision is the outcome of applying a fresh classification
// result to a previously known record. AmountOverride is nil when the
// record's amount field should be left untouched.
type ReconcileDecision struct {
	Category       string
	Status         model.ReviewStatus
	AmountOverride *float64
}

// Reconcile decides a record's new category and review status from a fresh
// classification result and the record's prior category (empty when the
// record was never categorized).
//
// An AI-derived category is trusted outright for an uncategorized record;
// for an already-categorized record it only corroborates or flags a
// discrepancy, never silently overwrites.
func Reconcile(fresh model.ClassificationResult, priorCategory string) ReconcileDecision {
	decision := ReconcileDecision{}

	switch {
	case !fresh.CategoryMatched:
		decision.Category = FallbackCategory
		decision.Status = model.StatusDisapproved
	case priorCategory == "":
		decision.Category = fresh.PrimaryCategory
		decision.Status = model.StatusApproved
	case strings.EqualFold(priorCategory, fresh.PrimaryCategory):
		decision.Category = fresh.PrimaryCategory
		decision.Status = model.StatusApproved
	default:
		decision.Category = fresh.PrimaryCategory
		decision.Status = model.StatusFlagged
	}

	if fresh.BillRecognised && fresh.BillDetails.TotalAmount > 0 {
		amount := fresh.BillDetails.TotalAmount
		decision.AmountOverride = &amount
	}

	return decision
}
