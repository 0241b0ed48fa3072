package model

import "time"

// ReviewStatus is the reconciliation verdict stored on a transaction record.
type ReviewStatus string

// Review status constants.
const (
	// StatusApproved means the fresh classification corroborates the record.
	StatusApproved ReviewStatus = "approved"
	// StatusFlagged means the fresh classification disagrees with the
	// record's existing category and needs human review.
	StatusFlagged ReviewStatus = "flagged"
	// StatusDisapproved means the classification did not match any allowed
	// category at all.
	StatusDisapproved ReviewStatus = "disapproved"
)

// TransactionRecord is a row in the external transaction record store.
type TransactionRecord struct {
	ID        string       `json:"id"`
	Category  string       `json:"category"`
	Status    ReviewStatus `json:"status"`
	Amount    float64      `json:"amount"`
	Vendor    string       `json:"vendor"`
	Currency  string       `json:"currency"`
	UpdatedAt time.Time    `json:"updated_at"`
}
