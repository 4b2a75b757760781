package demand

import "github.com/kilianp07/offgrid-dt/core/model"

// DemoAppliances is the reference household used when no appliance list is
// configured. Windows assume 15 minute steps.
func DemoAppliances() []model.ApplianceTemplate {
	return []model.ApplianceTemplate{
		{ID: "light", Name: "Lights", Category: model.Critical, PowerW: 100, DurationSteps: 1, LatestEndStep: 96},
		{ID: "fan", Name: "Fan", Category: model.Critical, PowerW: 75, DurationSteps: 1, LatestEndStep: 96},
		{ID: "fridge", Name: "Fridge", Category: model.Critical, PowerW: 150, DurationSteps: 1, LatestEndStep: 96},
		{ID: "pump", Name: "Water pump", Category: model.Flexible, PowerW: 750, DurationSteps: 4, EarliestStartStep: 24, LatestEndStep: 60},
		{ID: "wash", Name: "Washing machine", Category: model.Flexible, PowerW: 600, DurationSteps: 4, EarliestStartStep: 28, LatestEndStep: 72},
		{ID: "iron", Name: "Iron", Category: model.Deferrable, PowerW: 1000, DurationSteps: 2, EarliestStartStep: 32, LatestEndStep: 80},
	}
}
