package f1

// SeedFact is a knowledge base entry loaded on first boot.
type SeedFact struct {
	Content    string
	Category   string
	Confidence float64
}

// SeedFacts is the base knowledge every agent starts from.
var SeedFacts = []SeedFact{
	{"DRS may only be activated when a car is within one second of the car ahead at the detection point.", "technical", 0.98},
	{"The cost cap limits most team spending; power unit development and driver salaries sit outside it.", "technical", 0.95},
	{"Pirelli supplies three dry compounds per weekend, labelled soft, medium and hard.", "technical", 0.97},
	{"A standard pit stop for four tyres takes roughly 2 to 3 seconds of stationary time.", "strategy", 0.95},
	{"The undercut works when fresh tyre out-lap pace beats the rival's in-lap on worn tyres.", "strategy", 0.92},
	{"Safety car periods compress the field and roughly halve the cost of a pit stop.", "strategy", 0.93},
	{"Monaco has the slowest average lap speed on the calendar and overtaking there is exceptionally rare.", "historical", 0.96},
	{"Monza rewards low-drag setups; cars trim wing levels further there than at any other circuit.", "technical", 0.94},
	{"Team orders are legal and have been since the 2011 season.", "historical", 0.95},
	{"Parc ferme rules freeze most setup changes from the start of qualifying.", "technical", 0.94},
	{"Sprint weekends change the session order and award points for a shorter Saturday race.", "historical", 0.9},
	{"Wind direction changes of a few km/h can shift braking points enough to cause lockups.", "prediction", 0.85},
	{"Rain at Spa can fall on one sector while another stays dry because of the circuit's length.", "prediction", 0.9},
	{"Track evolution over a weekend typically makes each qualifying session faster than the last.", "technical", 0.88},
	{"A grand prix distance is the fewest laps exceeding 305 km, except Monaco at roughly 260 km.", "historical", 0.96},
}

// SeedNews is the initial news queue so the first loop cycles have real
// events to debate before live ingestion takes over.
type SeedNewsItem struct {
	Headline string
	Source   string
	Category string
}

var SeedNews = []SeedNewsItem{
	{"FIA introduces stricter front wing flex tests from next round", "fia.com", "technical"},
	{"Midfield team protests rival's floor after surprise podium", "autosport", "conspiracy"},
	{"Heavy rain forecast for race day at the next grand prix", "weather desk", "prediction"},
	{"Top team confirms upgraded power unit mode for qualifying", "motorsport.com", "technical"},
	{"Veteran driver linked with shock switch to rival squad", "paddock sources", "prediction"},
}
