// Package eligibility evaluates a patient's condition codes against the care
// program rules and reports the result with human-readable reasoning. The
// evaluation is a pure function of its input and the evaluation time: same
// codes, same answer.
package eligibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/iterahealth/activation-engine/internal/domain/catalog"
	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/domain/program"
)

// Input carries everything the evaluation needs. Codes must already be
// trimmed and de-duplicated (patient.ParseCodes does this at the boundary).
type Input struct {
	PatientID   string
	DisplayName string
	Insurance   string
	Codes       []string
	LastVisit   *time.Time
}

// Evaluation is one program's verdict with the evidence behind it.
type Evaluation struct {
	Eligible    bool     `json:"eligible"`
	Tooltip     string   `json:"tooltip"`
	Evidence    []string `json:"evidence"`
	Constraints []string `json:"constraints"`
}

// ProgramEvaluations is the closed variant set: one field per known program,
// so adding a program is a compile-checked change everywhere a result is
// consumed.
type ProgramEvaluations struct {
	CCM  Evaluation `json:"CCM"`
	RPM  Evaluation `json:"RPM"`
	PCM  Evaluation `json:"PCM"`
	APCM Evaluation `json:"APCM"`
	BHI  Evaluation `json:"BHI"`
}

// ByID returns the evaluation for a program, or nil for an unknown ID.
func (pe *ProgramEvaluations) ByID(id program.ID) *Evaluation {
	switch id {
	case program.CCM:
		return &pe.CCM
	case program.RPM:
		return &pe.RPM
	case program.PCM:
		return &pe.PCM
	case program.APCM:
		return &pe.APCM
	case program.BHI:
		return &pe.BHI
	}
	return nil
}

// EligibleProgram is an entry in the final eligible set, carrying the display
// reasoning the portal renders as badges and tooltips.
type EligibleProgram struct {
	Program  program.ID `json:"program"`
	Tooltip  string     `json:"tooltip"`
	Evidence []string   `json:"evidence"`
	Notes    []string   `json:"notes,omitempty"`
}

// Conflict flags two programs whose rules fired in a combination the domain
// considers contradictory.
type Conflict struct {
	ProgramsInConflict []program.ID `json:"programs_in_conflict"`
	Reason             string       `json:"reason"`
	Recommendation     string       `json:"recommendation"`
}

// Result is the full per-program evaluation for one patient at one point in
// time. NotEligibleReason is always non-empty when EligiblePrograms is empty.
type Result struct {
	PatientID            string             `json:"patient_id"`
	DisplayName          string             `json:"display_name"`
	Insurance            string             `json:"insurance"`
	EligiblePrograms     []EligibleProgram  `json:"eligible_programs"`
	Evaluations          ProgramEvaluations `json:"program_evaluation"`
	Conflicts            []Conflict         `json:"conflicts"`
	NotEligibleReason    string             `json:"not_eligible_reason,omitempty"`
	RecommendedNextSteps []string           `json:"recommended_next_steps,omitempty"`
	IdentifiedConditions []string           `json:"identified_conditions"`
	StatusHint           patient.Status     `json:"ui_status"`
}

// EligibleIDs returns just the program IDs of the eligible set, the value
// stored on Patient.EligiblePrograms.
func (r *Result) EligibleIDs() []program.ID {
	ids := make([]program.ID, 0, len(r.EligiblePrograms))
	for _, ep := range r.EligiblePrograms {
		ids = append(ids, ep.Program)
	}
	return ids
}

const (
	notEligibleGeneric = "Not eligible because Medicare eligibility criteria are not met."
	awvRequiredReason  = "Patient has not had an office visit in more than 12 months. " +
		"An AWV or office visit is required for Medicare CCM eligibility."
)

// rpmCategories are the monitoring-relevant clinical categories.
var rpmCategories = map[string]bool{
	"Hypertension":  true,
	"Heart Failure": true,
	"Diabetes":      true,
	"COPD":          true,
	"Asthma":        true,
}

// bhiCategories are the behavioral-health categories.
var bhiCategories = map[string]bool{
	"Behavioral Health": true,
	"Dementia":          true,
}

// Evaluate runs the program rules against the input at the current time.
func Evaluate(in Input) *Result {
	return EvaluateAt(in, time.Now())
}

// EvaluateAt is Evaluate with an injected evaluation time, so the recency
// gate is deterministic under test.
func EvaluateAt(in Input, now time.Time) *Result {
	conditions := make([]catalog.Condition, 0, len(in.Codes))
	for _, code := range in.Codes {
		conditions = append(conditions, catalog.Lookup(code))
	}

	categories := distinctCategories(conditions)
	codes := distinctCodes(conditions)

	evals := ProgramEvaluations{
		CCM:  evaluateCCM(conditions, categories, codes),
		RPM:  evaluateRPM(conditions),
		BHI:  evaluateBHI(conditions),
		APCM: evaluateAPCM(categories, codes),
	}
	// PCM depends on the CCM verdict: a multi-condition patient is routed
	// to the broader program, never both.
	evals.PCM = evaluatePCM(evals.CCM.Eligible, conditions, categories, codes)

	// The rules above make CCM and PCM mutually exclusive, but they are
	// edited independently, so check anyway.
	var conflicts []Conflict
	if evals.CCM.Eligible && evals.PCM.Eligible {
		conflicts = append(conflicts, Conflict{
			ProgramsInConflict: []program.ID{program.CCM, program.PCM},
			Reason:             "Duplicate care management for chronic conditions.",
			Recommendation:     "Enroll in CCM as it covers comprehensive needs.",
		})
	}

	var eligible []EligibleProgram
	for _, id := range program.All() {
		ev := evals.ByID(id)
		if ev.Eligible {
			eligible = append(eligible, EligibleProgram{
				Program:  id,
				Tooltip:  ev.Tooltip,
				Evidence: ev.Evidence,
				Notes:    ev.Constraints,
			})
		}
	}

	var reason string
	var nextSteps []string
	if len(eligible) == 0 {
		reason = notEligibleGeneric
		nextSteps = []string{"Add/confirm active chronic diagnoses", "Verify Medicare coverage"}
	}

	// Recency gate: without an office visit in the last 12 months the
	// positive verdicts are suspended, not erased. The per-program
	// evaluations stay visible as would-be-eligible-if-seen.
	if in.LastVisit != nil && in.LastVisit.Before(now.AddDate(-1, 0, 0)) {
		reason = awvRequiredReason
		nextSteps = append([]string{"Schedule Annual Wellness Visit (AWV)"}, nextSteps...)
		eligible = nil
	}

	status := patient.StatusNotApproved
	if len(eligible) > 0 {
		status = patient.StatusPendingApproval
	}

	return &Result{
		PatientID:            in.PatientID,
		DisplayName:          in.DisplayName,
		Insurance:            in.Insurance,
		EligiblePrograms:     eligible,
		Evaluations:          evals,
		Conflicts:            conflicts,
		NotEligibleReason:    reason,
		RecommendedNextSteps: nextSteps,
		IdentifiedConditions: categories,
		StatusHint:           status,
	}
}

// evaluateCCM applies the "2+ chronic conditions" rule. Two distinct codes
// without two distinct categories still qualify; multiple codes within one
// category are treated as distinct diagnoses worth counting. That permissive
// heuristic matches billing practice here, not precise clinical truth.
func evaluateCCM(conditions []catalog.Condition, categories []string, codes []string) Evaluation {
	ev := Evaluation{}
	if len(categories) >= 2 || len(codes) >= 2 {
		ev.Eligible = true
		list := strings.Join(categories, ", ")
		if list == "" {
			list = "Detected Conditions"
		}
		ev.Tooltip = fmt.Sprintf(
			"Eligible for %s because the patient has 2+ chronic conditions (%s) expected to last ≥12 months.",
			program.CCM.Name(), list)
		for _, c := range conditions {
			ev.Evidence = append(ev.Evidence, fmt.Sprintf("%s (%s)", c.Code, c.Category))
		}
	} else {
		ev.Tooltip = "Not eligible because Medicare eligibility criteria are not met (Requires 2+ chronic conditions)."
		ev.Constraints = append(ev.Constraints, "Insufficient chronic conditions detected (Need 2+).")
	}
	return ev
}

// evaluateRPM requires at least one condition where physiologic monitoring is
// medically indicated.
func evaluateRPM(conditions []catalog.Condition) Evaluation {
	ev := Evaluation{}
	var matched []catalog.Condition
	for _, c := range conditions {
		if rpmCategories[c.Category] {
			matched = append(matched, c)
		}
	}

	if len(matched) > 0 {
		ev.Eligible = true
		ev.Tooltip = fmt.Sprintf(
			"Eligible for %s because the patient has a chronic condition (%s) requiring remote physiologic monitoring.",
			program.RPM.Name(), strings.Join(distinctCategories(matched), ", "))
		for _, c := range matched {
			ev.Evidence = append(ev.Evidence, c.Code)
		}
	} else {
		ev.Tooltip = "Not eligible because Medicare eligibility criteria are not met (No physiologic monitoring indication)."
		ev.Constraints = append(ev.Constraints, "Need diagnosis like HTN, Diabetes, CHF, COPD.")
	}
	return ev
}

// evaluatePCM applies the single-complex-condition rule. It is deliberately
// exclusive with CCM: a patient who qualifies for the broader program is
// routed there instead.
func evaluatePCM(ccmEligible bool, conditions []catalog.Condition, categories []string, codes []string) Evaluation {
	ev := Evaluation{}
	switch {
	case !ccmEligible && len(codes) >= 1:
		ev.Eligible = true
		list := strings.Join(categories, ", ")
		if list == "" {
			list = "Detected Condition"
		}
		ev.Tooltip = fmt.Sprintf(
			"Eligible for %s because the patient has one high-risk chronic condition (%s).",
			program.PCM.Name(), list)
		for _, c := range conditions {
			ev.Evidence = append(ev.Evidence, c.Code)
		}
	case ccmEligible:
		ev.Tooltip = fmt.Sprintf(
			"Eligible for %s because the patient has multiple chronic conditions with clinical complexity (CCM criteria met).",
			program.APCM.Name())
		ev.Constraints = append(ev.Constraints, "CCM is preferred over PCM for multi-condition patients.")
	default:
		ev.Tooltip = notEligibleGeneric
		ev.Constraints = append(ev.Constraints, "No qualifying chronic condition found.")
	}
	return ev
}

func evaluateBHI(conditions []catalog.Condition) Evaluation {
	ev := Evaluation{}
	var matched []catalog.Condition
	for _, c := range conditions {
		if bhiCategories[c.Category] {
			matched = append(matched, c)
		}
	}

	if len(matched) > 0 {
		ev.Eligible = true
		ev.Tooltip = fmt.Sprintf(
			"Eligible for %s because the patient has a behavioral health condition (%s).",
			program.BHI.Name(), strings.Join(distinctCategories(matched), ", "))
		for _, c := range matched {
			ev.Evidence = append(ev.Evidence, c.Code)
		}
	} else {
		ev.Tooltip = notEligibleGeneric
		ev.Constraints = append(ev.Constraints, "No behavioral health diagnosis found.")
	}
	return ev
}

func evaluateAPCM(categories []string, codes []string) Evaluation {
	ev := Evaluation{}
	if len(categories) >= 2 {
		ev.Eligible = true
		ev.Tooltip = fmt.Sprintf(
			"Eligible for %s because the patient has multiple chronic conditions with clinical complexity.",
			program.APCM.Name())
		ev.Evidence = append(ev.Evidence, codes...)
	} else {
		ev.Tooltip = notEligibleGeneric
	}
	return ev
}

// distinctCategories returns known categories in first-seen order; Unknown is
// excluded so uncategorized codes never satisfy category-based rules.
func distinctCategories(conditions []catalog.Condition) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range conditions {
		if c.Category == catalog.CategoryUnknown {
			continue
		}
		if _, ok := seen[c.Category]; ok {
			continue
		}
		seen[c.Category] = struct{}{}
		out = append(out, c.Category)
	}
	return out
}

// distinctCodes returns resolved catalog codes in first-seen order. Subcodes
// collapse to their catalog base (E11.9 and E11 count once); unknown codes
// keep their raw form and still count.
func distinctCodes(conditions []catalog.Condition) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range conditions {
		if _, ok := seen[c.Code]; ok {
			continue
		}
		seen[c.Code] = struct{}{}
		out = append(out, c.Code)
	}
	return out
}
