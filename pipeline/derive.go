package pipeline

import (
	"fmt"
	"strconv"

	"github.com/gridmill/gridmill/core/model"
	"github.com/gridmill/gridmill/core/rules"
)

// Policy tunes the pipeline's data-vintage handling.
type Policy struct {
	// ConstraintHorizonYear is the last ISO year with published boundary
	// capacities. Days beyond it are served the horizon year's vintage and
	// audited with a FallbackNote. Zero disables the substitution: the true
	// vintage is always requested.
	ConstraintHorizonYear int
}

// isoWeekPath derives the weekly boundary-capacity artifact for a day,
// keyed by ISO-8601 year and week. 2024-01-01 falls in 2024/W01, not in the
// last week of 2023.
func isoWeekPath(policy Policy) rules.DeriveFunc {
	return func(b rules.Binding) (string, *rules.FallbackNote, error) {
		raw, ok := b["day"]
		if !ok {
			return "", nil, fmt.Errorf("binding has no day wildcard")
		}
		day, err := model.ParseDay(raw)
		if err != nil {
			return "", nil, err
		}
		year, week := day.ISOWeek()
		var note *rules.FallbackNote
		if policy.ConstraintHorizonYear > 0 && year > policy.ConstraintHorizonYear {
			note = &rules.FallbackNote{
				Wildcard:    "iso_year",
				Requested:   strconv.Itoa(year),
				Substituted: strconv.Itoa(policy.ConstraintHorizonYear),
			}
			year = policy.ConstraintHorizonYear
		}
		return constraintPath(year, week), note, nil
	}
}

func constraintPath(year, week int) string {
	return fmt.Sprintf("data/constraints/%d/week_%02d/boundary_capacities.csv", year, week)
}
