// Package model defines the core domain models used throughout the application.
package model

import (
	"strings"
	"time"
)

// HomeCurrency is the currency code assumed when a bill does not state one.
const HomeCurrency = "INR"

// ConfidenceThreshold is the cutoff below which a candidate category is discarded.
const ConfidenceThreshold = 0.70

// AllowedCategories is the closed set of categories a record can be matched against.
var AllowedCategories = map[string]bool{
	"food":    true,
	"fuel":    true,
	"medical": true,
}

// Category is a single candidate category with its confidence score.
type Category struct {
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// Categories is a slice of Category with filtering and matching helpers.
// Order is significant: it is the order the model reported them in.
type Categories []Category

// AboveThreshold returns the categories at or above the given confidence,
// preserving the original order. Entries below the threshold are dropped
// entirely rather than flagged.
func (c Categories) AboveThreshold(threshold float64) Categories {
	var result Categories
	for _, cat := range c {
		if cat.Confidence >= threshold {
			result = append(result, cat)
		}
	}
	return result
}

// FirstAllowed scans the categories in order and returns the first whose
// name case-insensitively matches the allowed set, or nil if none match.
func (c Categories) FirstAllowed() *Category {
	for i := range c {
		if AllowedCategories[strings.ToLower(c[i].Name)] {
			return &c[i]
		}
	}
	return nil
}

// BillItem is a single line item extracted from a bill or receipt.
type BillItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// BillDetails holds the structured data extracted from a recognised bill.
// Its zero value (with Currency defaulted) is the canonical "no bill" form;
// it is always present on a result, never null.
type BillDetails struct {
	TotalAmount float64    `json:"total_amount"`
	Currency    string     `json:"currency"`
	Items       []BillItem `json:"items"`
	Tax         float64    `json:"tax"`
	VendorName  string     `json:"vendor_name"`
	Date        string     `json:"date"`
}

// EmptyBillDetails returns the all-default bill details used when no bill
// was recognised.
func EmptyBillDetails() BillDetails {
	return BillDetails{
		Currency: HomeCurrency,
		Items:    []BillItem{},
	}
}

// ClassificationResult is the canonical, always fully populated output of a
// classification. Absent data is represented by zero values, never by a
// missing field, so downstream consumers never branch on presence.
type ClassificationResult struct {
	Filename        string      `json:"filename"`
	Categories      Categories  `json:"categories"`
	PrimaryCategory string      `json:"primary_category"`
	CategoryMatched bool        `json:"category_matched"`
	RawSummary      string      `json:"raw_summary"`
	BillRecognised  bool        `json:"bill_recognised"`
	BillDetails     BillDetails `json:"bill_details"`
	ProcessedAt     time.Time   `json:"processed_at"`
}

// ImagePayload is the model-callable representation of an upload: the raw
// bytes plus the detected MIME type. A text/plain payload is sent to the
// model as free-form text instead of inline image data.
type ImagePayload struct {
	Data     []byte
	MIMEType string
}

// IsText reports whether the payload should be sent as plain text.
func (p ImagePayload) IsText() bool {
	return strings.HasPrefix(p.MIMEType, "text/")
}
