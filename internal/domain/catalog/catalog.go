// Package catalog maps raw ICD-10 codes to the clinical categories the
// eligibility rules reason about. The table is a simplified illustrative
// mapping of common chronic conditions, not a certified coding engine.
package catalog

import "strings"

// CategoryUnknown marks a code the catalog has no entry for. Unknown codes
// still count toward multiplicity-based rules but never toward
// category-based ones.
const CategoryUnknown = "Unknown"

type Condition struct {
	Code        string
	Description string
	Category    string
}

var conditions = map[string]Condition{
	"I10": {Code: "I10", Description: "Essential (primary) hypertension", Category: "Hypertension"},
	"I11": {Code: "I11", Description: "Hypertensive heart disease", Category: "Hypertension"},
	"I12": {Code: "I12", Description: "Hypertensive kidney disease", Category: "Hypertension"},
	"I13": {Code: "I13", Description: "Hypertensive heart and kidney disease", Category: "Hypertension"},
	"E11": {Code: "E11", Description: "Type 2 diabetes mellitus", Category: "Diabetes"},
	"E10": {Code: "E10", Description: "Type 1 diabetes mellitus", Category: "Diabetes"},
	"J44": {Code: "J44", Description: "Other chronic obstructive pulmonary disease", Category: "COPD"},
	"J45": {Code: "J45", Description: "Asthma", Category: "Asthma"},
	"I50": {Code: "I50", Description: "Heart failure", Category: "Heart Failure"},
	"M15": {Code: "M15", Description: "Polyosteoarthritis", Category: "Arthritis"},
	"M16": {Code: "M16", Description: "Osteoarthritis of hip", Category: "Arthritis"},
	"M17": {Code: "M17", Description: "Osteoarthritis of knee", Category: "Arthritis"},
	"E78": {Code: "E78", Description: "Disorders of lipoprotein metabolism", Category: "Hyperlipidemia"},
	"N18": {Code: "N18", Description: "Chronic kidney disease (CKD)", Category: "CKD"},
	"F32": {Code: "F32", Description: "Major depressive disorder", Category: "Behavioral Health"},
	"F41": {Code: "F41", Description: "Other anxiety disorders", Category: "Behavioral Health"},
	"G30": {Code: "G30", Description: "Alzheimer disease", Category: "Dementia"},
}

// Lookup resolves a raw ICD-10 code to a catalog condition. Exact matches win;
// otherwise the longest catalog entry that prefixes the code is used, so
// subcoded diagnoses like "E11.9" resolve to "E11". Codes the catalog does not
// know yield a synthetic Unknown-category condition rather than being dropped.
func Lookup(code string) Condition {
	clean := strings.ToUpper(strings.TrimSpace(code))

	if c, ok := conditions[clean]; ok {
		return c
	}

	var best Condition
	bestLen := 0
	for key, c := range conditions {
		if strings.HasPrefix(clean, key) && len(key) > bestLen {
			best, bestLen = c, len(key)
		}
	}
	if bestLen > 0 {
		return best
	}

	return Condition{Code: clean, Description: "Unknown Condition", Category: CategoryUnknown}
}

// Known reports whether the catalog has an entry (exact or prefix) for code.
func Known(code string) bool {
	return Lookup(code).Category != CategoryUnknown
}
