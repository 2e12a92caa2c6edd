package services

import (
	"sort"
	"strings"

	"registration-api/rules"
)

// MissingDocument reports one under-supplied document requirement.
type MissingDocument struct {
	Type     rules.DocumentType `json:"type"`
	Required int                `json:"required"`
	Observed int                `json:"observed"`
}

// CompletenessResult is the structured verdict of a validation pass.
// Incompleteness is a normal, reportable outcome, not an error.
type CompletenessResult struct {
	Valid            bool              `json:"valid"`
	MissingFields    []string          `json:"missing_fields"`
	MissingDocuments []MissingDocument `json:"missing_documents"`
	RequiresTracking bool              `json:"requires_tracking"`
	Category         rules.Category    `json:"category"`
}

// ValidateCompleteness checks a candidate submission's field values and
// attached document types against the category's rules. Pure and
// side-effect-free, so it is safe to call speculatively (live checklist
// rendering) without touching persisted state. Fails only for an unknown
// category.
func ValidateCompleteness(category rules.Category, fields map[string]string, docs []rules.DocumentType, declaredValue *float64) (CompletenessResult, error) {
	def, err := rules.Get(category)
	if err != nil {
		return CompletenessResult{}, err
	}

	result := CompletenessResult{
		Valid:            true,
		MissingFields:    []string{},
		MissingDocuments: []MissingDocument{},
		Category:         category,
	}

	for _, field := range def.RequiredFields {
		if strings.TrimSpace(fields[field]) == "" {
			result.MissingFields = append(result.MissingFields, field)
		}
	}

	observed := make(map[rules.DocumentType]int, len(docs))
	for _, t := range docs {
		observed[t]++
	}
	for docType, required := range def.RequiredDocuments {
		if observed[docType] < required {
			result.MissingDocuments = append(result.MissingDocuments, MissingDocument{
				Type:     docType,
				Required: required,
				Observed: observed[docType],
			})
		}
	}
	// Map iteration order is not deterministic; the checklist should be.
	sort.Slice(result.MissingDocuments, func(i, j int) bool {
		return result.MissingDocuments[i].Type < result.MissingDocuments[j].Type
	})

	if def.TrackingThreshold != nil && declaredValue != nil && *declaredValue >= *def.TrackingThreshold {
		result.RequiresTracking = true
	}

	result.Valid = len(result.MissingFields) == 0 && len(result.MissingDocuments) == 0
	return result, nil
}
