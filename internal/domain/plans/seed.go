package plans

import "gorm.io/datatypes"

// defaultPlans is the fixed catalog written by EnsureSeeded and served when
// the store cannot be read.
var defaultPlans = []Plan{
	{
		ID:            "plan_free",
		Slug:          "free",
		Name:          "Gratuito",
		Price:         0,
		Currency:      "brl",
		BillingPeriod: Monthly,
		Limits: datatypes.NewJSONType(Limits{
			PollsPerMonth: 3,
			ActivePolls:   1,
			Profiles:      1,
			TeamMembers:   1,
			StorageMB:     50,
		}),
		Features:  datatypes.NewJSONSlice([]string{"basic-polls", "comments"}),
		Active:    true,
		SortOrder: 0,
	},
	{
		ID:            "plan_basic_monthly",
		Slug:          "basic",
		Name:          "Básico",
		Price:         2990,
		Currency:      "brl",
		BillingPeriod: Monthly,
		TrialDays:     7,
		Limits: datatypes.NewJSONType(Limits{
			PollsPerMonth: 20,
			ActivePolls:   5,
			Profiles:      1,
			TeamMembers:   3,
			StorageMB:     500,
		}),
		Features:  datatypes.NewJSONSlice([]string{"basic-polls", "comments", "company-profile", "export-csv"}),
		Active:    true,
		SortOrder: 10,
	},
	{
		ID:            "plan_pro_monthly",
		Slug:          "pro",
		Name:          "Profissional",
		Price:         7990,
		Currency:      "brl",
		BillingPeriod: Monthly,
		TrialDays:     7,
		Limits: datatypes.NewJSONType(Limits{
			PollsPerMonth: 100,
			ActivePolls:   25,
			Profiles:      3,
			TeamMembers:   10,
			StorageMB:     5000,
		}),
		Features:  datatypes.NewJSONSlice([]string{"basic-polls", "comments", "company-profile", "export-csv", "analytics", "custom-branding"}),
		Active:    true,
		SortOrder: 20,
		Metadata:  datatypes.JSONMap{"badge": "popular"},
	},
	{
		ID:            "plan_business_yearly",
		Slug:          "business",
		Name:          "Empresarial",
		Price:         79900,
		Currency:      "brl",
		BillingPeriod: Yearly,
		Limits: datatypes.NewJSONType(Limits{
			PollsPerMonth: 0,
			ActivePolls:   0,
			Profiles:      10,
			TeamMembers:   50,
			StorageMB:     50000,
		}),
		Features:  datatypes.NewJSONSlice([]string{"basic-polls", "comments", "company-profile", "export-csv", "analytics", "custom-branding", "priority-support", "sso"}),
		Active:    true,
		SortOrder: 30,
	},
}

// DefaultPlans returns a copy of the seed catalog.
func DefaultPlans() []Plan {
	out := make([]Plan, len(defaultPlans))
	for i := range defaultPlans {
		out[i] = clonePlan(defaultPlans[i])
	}
	return out
}

func seedByID(id string) (Plan, bool) {
	for _, p := range defaultPlans {
		if p.ID == id {
			return clonePlan(p), true
		}
	}
	return Plan{}, false
}

func seedBySlug(slug string) (Plan, bool) {
	for _, p := range defaultPlans {
		if p.Slug == slug {
			return clonePlan(p), true
		}
	}
	return Plan{}, false
}

func clonePlan(p Plan) Plan {
	if p.Features != nil {
		p.Features = append(datatypes.JSONSlice[string](nil), p.Features...)
	}
	if p.Metadata != nil {
		md := make(datatypes.JSONMap, len(p.Metadata))
		for k, v := range p.Metadata {
			md[k] = v
		}
		p.Metadata = md
	}
	return p
}
