package enrich

// provinceRule maps a province to the location keywords that identify it.
// Order matters: the first rule whose keyword matches wins.
type provinceRule struct {
	Province string
	Keywords []string
}

var provinceRules = []provinceRule{
	{"Gauteng", []string{
		"gauteng", "johannesburg", "pretoria", "tshwane", "ekurhuleni",
		"midrand", "sandton", "soweto", "centurion", "germiston",
	}},
	{"Western Cape", []string{
		"western cape", "cape town", "stellenbosch", "george", "paarl",
		"worcester", "mossel bay",
	}},
	{"KwaZulu-Natal", []string{
		"kwazulu", "kzn", "durban", "pietermaritzburg", "ethekwini",
		"richards bay", "newcastle",
	}},
	{"Eastern Cape", []string{
		"eastern cape", "port elizabeth", "gqeberha", "east london",
		"mthatha", "buffalo city",
	}},
	{"Free State", []string{
		"free state", "bloemfontein", "welkom", "mangaung",
	}},
	{"Limpopo", []string{
		"limpopo", "polokwane", "thohoyandou", "tzaneen", "lephalale",
	}},
	{"Mpumalanga", []string{
		"mpumalanga", "nelspruit", "mbombela", "emalahleni", "witbank",
	}},
	{"North West", []string{
		"north west", "mahikeng", "mafikeng", "rustenburg", "potchefstroom",
		"klerksdorp",
	}},
	{"Northern Cape", []string{
		"northern cape", "kimberley", "upington", "springbok",
	}},
}
