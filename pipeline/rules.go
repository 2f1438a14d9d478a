// Package pipeline carries the built-in island settlement study: the rule
// templates mapping raw market data through per-layout network builds and
// market solves to settlement summaries, plus the HCL overlay loader for
// study variants.
package pipeline

import (
	"fmt"
	"strconv"

	"github.com/gridmill/gridmill/core/model"
	"github.com/gridmill/gridmill/core/rules"
)

// Default registers the derivation functions and the built-in rule set.
func Default(reg *rules.Registry, policy Policy) error {
	if err := reg.RegisterDerivation("iso_week_path", isoWeekPath(policy)); err != nil {
		return err
	}
	for _, tpl := range defaultTemplates() {
		if err := reg.Register(tpl); err != nil {
			return fmt.Errorf("registering rule %s: %w", tpl.Name, err)
		}
	}
	return nil
}

func dayValidator(v string) error {
	_, err := model.ParseDay(v)
	return err
}

func layoutValidator(v string) error {
	_, err := model.ParseLayout(v)
	return err
}

func icValidator(v string) error {
	_, err := model.ParseInterconnectorMode(v)
	return err
}

func isoYearValidator(v string) error {
	if len(v) != 4 {
		return fmt.Errorf("iso year must be four digits")
	}
	if _, err := strconv.Atoi(v); err != nil {
		return fmt.Errorf("iso year must be numeric")
	}
	return nil
}

func isoWeekValidator(v string) error {
	if len(v) != 2 {
		return fmt.Errorf("iso week must be two digits")
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 53 {
		return fmt.Errorf("iso week must be 01..53")
	}
	return nil
}

var wildcardValidators = map[string]rules.ValidatorFunc{
	"day":      dayValidator,
	"layout":   layoutValidator,
	"ic":       icValidator,
	"iso_year": isoYearValidator,
	"iso_week": isoWeekValidator,
}

func validators(names ...string) map[string]rules.ValidatorFunc {
	m := make(map[string]rules.ValidatorFunc, len(names))
	for _, n := range names {
		m[n] = wildcardValidators[n]
	}
	return m
}

func defaultTemplates() []*rules.RuleTemplate {
	return []*rules.RuleTemplate{
		{
			Name:       "fetch_bmu_register",
			Outputs:    []rules.OutputRef{rules.Output("register", "data/base/{day}/bmu_register.csv")},
			MemoryMB:   1000,
			Script:     "fetch_bmu_register.sh",
			Log:        rules.MustPattern("logs/{day}/fetch_bmu_register.log"),
			Validators: validators("day"),
		},
		{
			Name:       "fetch_demand",
			Outputs:    []rules.OutputRef{rules.Output("demand", "data/base/{day}/demand.csv")},
			MemoryMB:   2000,
			Script:     "fetch_demand.sh",
			Log:        rules.MustPattern("logs/{day}/fetch_demand.log"),
			Validators: validators("day"),
		},
		{
			Name:       "fetch_physical_notifications",
			Outputs:    []rules.OutputRef{rules.Output("pns", "data/base/{day}/physical_notifications.csv")},
			MemoryMB:   4000,
			Script:     "fetch_physical_notifications.sh",
			Log:        rules.MustPattern("logs/{day}/fetch_physical_notifications.log"),
			Validators: validators("day"),
		},
		{
			Name: "fetch_bid_offer_stack",
			Outputs: []rules.OutputRef{
				rules.Output("bids", "data/base/{day}/submitted_bids.csv"),
				rules.Output("offers", "data/base/{day}/submitted_offers.csv"),
			},
			MemoryMB:   4000,
			Script:     "fetch_bid_offer_stack.sh",
			Log:        rules.MustPattern("logs/{day}/fetch_bid_offer_stack.log"),
			Validators: validators("day"),
		},
		{
			Name:       "fetch_interconnector_schedules",
			Outputs:    []rules.OutputRef{rules.Output("schedules", "data/base/{day}/interconnector_schedules.csv")},
			MemoryMB:   1000,
			Script:     "fetch_interconnector_schedules.sh",
			Log:        rules.MustPattern("logs/{day}/fetch_interconnector_schedules.log"),
			Validators: validators("day"),
		},
		{
			Name:       "fetch_boundary_capacities",
			Outputs:    []rules.OutputRef{rules.Output("capacities", "data/constraints/{iso_year}/week_{iso_week}/boundary_capacities.csv")},
			MemoryMB:   2000,
			Script:     "fetch_boundary_capacities.sh",
			Log:        rules.MustPattern("logs/constraints/{iso_year}_week_{iso_week}.log"),
			Validators: validators("iso_year", "iso_week"),
		},
		{
			Name:    "build_network",
			Outputs: []rules.OutputRef{rules.Output("network", "networks/{day}/{layout}.nc")},
			Inputs: []rules.InputRef{
				rules.LiteralInput("register", "data/base/{day}/bmu_register.csv"),
				rules.LiteralInput("demand", "data/base/{day}/demand.csv"),
				rules.LiteralInput("pns", "data/base/{day}/physical_notifications.csv"),
				rules.LiteralInput("schedules", "data/base/{day}/interconnector_schedules.csv"),
				rules.DerivedInput("capacities", "iso_week_path"),
			},
			MemoryMB:   8000,
			Script:     "build_network.sh",
			Log:        rules.MustPattern("logs/{day}/build_network_{layout}.log"),
			Validators: validators("day", "layout"),
		},
		{
			Name: "solve_market",
			Outputs: []rules.OutputRef{
				rules.Output("dispatch", "results/{day}/dispatch_{layout}_{ic}.csv"),
				rules.Output("prices", "results/{day}/prices_{layout}_{ic}.csv"),
			},
			Inputs: []rules.InputRef{
				rules.LiteralInput("network", "networks/{day}/{layout}.nc"),
				rules.LiteralInput("bids", "data/base/{day}/submitted_bids.csv"),
				rules.LiteralInput("offers", "data/base/{day}/submitted_offers.csv"),
			},
			MemoryMB:   16000,
			Script:     "solve_market.sh",
			Log:        rules.MustPattern("logs/{day}/solve_market_{layout}_{ic}.log"),
			Validators: validators("day", "layout", "ic"),
		},
		{
			Name:    "clear_balancing",
			Outputs: []rules.OutputRef{rules.Output("actions", "results/{day}/balancing_actions_{layout}_{ic}.csv")},
			Inputs: []rules.InputRef{
				rules.LiteralInput("dispatch", "results/{day}/dispatch_{layout}_{ic}.csv"),
				rules.LiteralInput("bids", "data/base/{day}/submitted_bids.csv"),
				rules.LiteralInput("offers", "data/base/{day}/submitted_offers.csv"),
				rules.LiteralInput("pns", "data/base/{day}/physical_notifications.csv"),
			},
			MemoryMB:   12000,
			Script:     "clear_balancing.sh",
			Log:        rules.MustPattern("logs/{day}/clear_balancing_{layout}_{ic}.log"),
			Validators: validators("day", "layout", "ic"),
		},
		{
			Name:    "compute_revenues",
			Outputs: []rules.OutputRef{rules.Output("revenues", "results/{day}/bmu_revenues_{layout}_{ic}.csv")},
			Inputs: []rules.InputRef{
				rules.LiteralInput("dispatch", "results/{day}/dispatch_{layout}_{ic}.csv"),
				rules.LiteralInput("prices", "results/{day}/prices_{layout}_{ic}.csv"),
				rules.LiteralInput("actions", "results/{day}/balancing_actions_{layout}_{ic}.csv"),
				rules.LiteralInput("register", "data/base/{day}/bmu_register.csv"),
			},
			MemoryMB:   6000,
			Script:     "compute_revenues.sh",
			Log:        rules.MustPattern("logs/{day}/compute_revenues_{layout}_{ic}.log"),
			Validators: validators("day", "layout", "ic"),
		},
		{
			Name:    "system_cost_summary",
			Outputs: []rules.OutputRef{rules.Output("summary", "results/{day}/system_cost_summary_{ic}.csv")},
			Inputs: []rules.InputRef{
				rules.LiteralInput("revenues_national", "results/{day}/bmu_revenues_national_{ic}.csv"),
				rules.LiteralInput("revenues_zonal", "results/{day}/bmu_revenues_zonal_{ic}.csv"),
				rules.LiteralInput("revenues_nodal", "results/{day}/bmu_revenues_nodal_{ic}.csv"),
				rules.LiteralInput("prices_national", "results/{day}/prices_national_{ic}.csv"),
				rules.LiteralInput("prices_zonal", "results/{day}/prices_zonal_{ic}.csv"),
				rules.LiteralInput("prices_nodal", "results/{day}/prices_nodal_{ic}.csv"),
			},
			MemoryMB:   2000,
			Script:     "system_cost_summary.sh",
			Log:        rules.MustPattern("logs/{day}/system_cost_summary_{ic}.log"),
			Validators: validators("day", "ic"),
		},
		{
			Name:    "frontend_bundle",
			Outputs: []rules.OutputRef{rules.Output("bundle", "frontend/{day}/settlement_{ic}.json")},
			Inputs: []rules.InputRef{
				rules.LiteralInput("summary", "results/{day}/system_cost_summary_{ic}.csv"),
				rules.LiteralInput("revenues_national", "results/{day}/bmu_revenues_national_{ic}.csv"),
				rules.LiteralInput("revenues_zonal", "results/{day}/bmu_revenues_zonal_{ic}.csv"),
				rules.LiteralInput("revenues_nodal", "results/{day}/bmu_revenues_nodal_{ic}.csv"),
			},
			MemoryMB:   1000,
			Script:     "frontend_bundle.sh",
			Log:        rules.MustPattern("logs/{day}/frontend_bundle_{ic}.log"),
			Validators: validators("day", "ic"),
		},
	}
}
