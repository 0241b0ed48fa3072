package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/billsense/billsense/internal/common"
	"github.com/billsense/billsense/internal/model"
)

// ParseResponse normalizes raw model response text into a complete
// ClassificationResult. Every field of the result is populated; absent data
// becomes the zero value for its type. The only error condition is input
// that cannot be parsed as a JSON object after fence stripping, reported as
// common.ErrMalformedResponse.
func ParseResponse(rawText, filename string) (model.ClassificationResult, error) {
	cleaned := stripCodeFence(rawText)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return model.ClassificationResult{}, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	result := model.ClassificationResult{
		Filename:    filename,
		Categories:  model.Categories{},
		BillDetails: model.EmptyBillDetails(),
		ProcessedAt: time.Now(),
	}

	result.Categories = parseCategories(data["categories"])
	result.BillRecognised = coerceBool(data["bill_recognised"])

	if result.BillRecognised {
		if raw, ok := data["bill_details"].(map[string]any); ok {
			result.BillDetails = parseBillDetails(raw)
		}
	}

	// primary_category and category_matched are derived from the filtered
	// categories, never taken from the raw output.
	if match := result.Categories.FirstAllowed(); match != nil {
		result.CategoryMatched = true
		result.PrimaryCategory = match.Name
	} else if len(result.Categories) > 0 {
		result.PrimaryCategory = result.Categories[0].Name
	}

	result.RawSummary = toString(data["summary"], "")

	return result, nil
}

// stripCodeFence removes an optional markdown code-fence wrapper: the first
// line (the opening fence, possibly with a language tag) and everything from
// the trailing fence on.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}

	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}

	return strings.TrimSpace(text)
}

// parseCategories converts the candidate categories array, applying the
// confidence threshold filter. Entries below the threshold are dropped
// entirely; if none survive, the result is an empty slice.
func parseCategories(raw any) model.Categories {
	items, ok := raw.([]any)
	if !ok {
		return model.Categories{}
	}

	all := make(model.Categories, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		all = append(all, model.Category{
			Name:        toString(entry["name"], "unknown"),
			Confidence:  toFloat(entry["confidence"], 0.5),
			Description: toString(entry["description"], ""),
		})
	}

	filtered := all.AboveThreshold(model.ConfidenceThreshold)
	if filtered == nil {
		return model.Categories{}
	}
	return filtered
}

// parseBillDetails extracts structured bill data. Line items are parsed
// defensively: an item is included only if it carries a price field.
func parseBillDetails(raw map[string]any) model.BillDetails {
	details := model.EmptyBillDetails()

	details.TotalAmount = toFloat(raw["total_amount"], 0)
	details.Tax = toFloat(raw["tax"], 0)
	details.VendorName = toString(raw["vendor_name"], "")
	details.Date = toString(raw["date"], "")
	if currency := toString(raw["currency"], ""); currency != "" {
		details.Currency = currency
	}

	items, ok := raw["items"].([]any)
	if !ok {
		return details
	}

	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, hasPrice := entry["price"]; !hasPrice {
			continue
		}

		// Gemini sometimes emits fractional quantities; truncate to int.
		quantity := int(toFloat(entry["quantity"], 1))
		if quantity < 1 {
			quantity = 1
		}

		currency := toString(entry["currency"], "")
		if currency == "" {
			currency = model.HomeCurrency
		}

		details.Items = append(details.Items, model.BillItem{
			Name:     toString(entry["name"], "Unknown item"),
			Quantity: quantity,
			Price:    toFloat(entry["price"], 0),
			Currency: currency,
		})
	}

	return details
}

// coerceBool accepts a native boolean or the case-insensitive string "true";
// any other representation is false, never an error.
func coerceBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// toString returns the string value of raw, or fallback when raw is missing,
// null, or empty.
func toString(raw any, fallback string) string {
	if s, ok := raw.(string); ok && s != "" {
		return s
	}
	return fallback
}

// toFloat converts raw to a float64 with best effort: native numbers pass
// through, numeric strings are parsed, everything else (including absence)
// yields fallback.
func toFloat(raw any, fallback float64) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return 0
	case nil:
		return fallback
	default:
		return fallback
	}
}
