package enrich

// DefaultIndustry is assigned when no keyword matches.
const DefaultIndustry = "Other"

// industryRule maps an industry category to its keywords. Rules are checked
// in order and the first match wins, so more specific categories come first.
type industryRule struct {
	Industry string
	Keywords []string
}

var industryRules = []industryRule{
	{"Information Technology", []string{
		"information technology", " it ", "software", "computer", "laptop",
		"server", "network", "telecom", "ict", "printer", "hardware",
	}},
	{"Construction", []string{
		"construction", "building works", "civil works", "renovation",
		"refurbishment", "roads", "paving", "bridge",
	}},
	{"Healthcare", []string{
		"health", "medical", "hospital", "clinic", "pharmaceutical",
		"ambulance",
	}},
	{"Education", []string{
		"education", "school", "university", "tvet", "training", "learner",
	}},
	{"Security", []string{
		"security", "guarding", "surveillance", "cctv", "access control",
	}},
	{"Transport", []string{
		"transport", "vehicle", "fleet", "logistics", "bus service",
	}},
	{"Energy", []string{
		"electricity", "electrical", "energy", "solar", "generator", "power supply",
	}},
	{"Water and Sanitation", []string{
		"water", "sanitation", "sewerage", "sewer", "plumbing", "borehole",
	}},
	{"Agriculture", []string{
		"agriculture", "farming", "livestock", "irrigation", "fertiliser",
	}},
	{"Cleaning and Waste", []string{
		"cleaning", "hygiene", "waste", "refuse", "pest control",
	}},
	{"Professional Services", []string{
		"consulting", "advisory", "audit", "legal services",
		"professional services", "accounting",
	}},
	{"Catering", []string{
		"catering", "food supply", "meals",
	}},
}
