package cohort

import (
	"fmt"
	"sort"
)

// DefaultMissing is the phenotype value marking an individual as excluded.
const DefaultMissing = "NA"

// Classifier resolves raw phenotype values to a Class.
//
// When ControlValue is empty every value that is neither CaseValue nor
// Missing counts as a control. When it is set, values matching none of the
// three codes are unrecognized.
type Classifier struct {
	CaseValue    string
	ControlValue string
	Missing      string
}

// Resolve returns the class for a raw value. ok is false for unrecognized
// values.
func (c Classifier) Resolve(raw string) (class Class, ok bool) {
	missing := c.Missing
	if missing == "" {
		missing = DefaultMissing
	}

	switch {
	case raw == c.CaseValue:
		return Case, true
	case raw == missing:
		return Excluded, true
	case c.ControlValue == "" || raw == c.ControlValue:
		return Control, true
	}
	return Excluded, false
}

// CheckCodes verifies that the phenotype values use at most one case code,
// one control code and the missing code. Only meaningful when ControlValue
// is empty; with an explicit control code stray values are counted instead.
func (c Classifier) CheckCodes(values map[string]string) error {
	if c.CaseValue == "" {
		return fmt.Errorf("case value is required")
	}
	if c.ControlValue != "" {
		return nil
	}

	missing := c.Missing
	if missing == "" {
		missing = DefaultMissing
	}

	var controls []string
	seen := make(map[string]bool)
	for _, v := range values {
		if v == c.CaseValue || v == missing || seen[v] {
			continue
		}
		seen[v] = true
		controls = append(controls, v)
	}
	if len(controls) > 1 {
		sort.Strings(controls)
		return fmt.Errorf("phenotype table must contain only the case code %q, one control code and %q; found control codes %v",
			c.CaseValue, missing, controls)
	}
	return nil
}
