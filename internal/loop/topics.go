package loop

import (
	"math/rand"
	"strings"
)

// Seed pools for generated debate topics.
var (
	Teams = []string{
		"Red Bull", "Ferrari", "Mercedes", "McLaren", "Aston Martin",
		"Alpine", "Williams", "Racing Bulls", "Sauber", "Haas",
	}
	Drivers = []string{
		"Verstappen", "Leclerc", "Hamilton", "Norris", "Piastri",
		"Russell", "Alonso", "Sainz", "Gasly", "Albon",
	}
	Circuits = []string{
		"Monaco", "Silverstone", "Monza", "Spa", "Suzuka",
		"Interlagos", "Singapore", "Bahrain", "Zandvoort", "Austin",
	}
)

// Category weights for generated topics. Kept as explicit integers so the
// distribution is auditable.
var categoryWeights = []struct {
	name   string
	weight int
}{
	{"conspiracy", 25},
	{"technical", 25},
	{"strategy", 20},
	{"historical", 15},
	{"prediction", 15},
}

var topicTemplates = map[string][]string{
	"conspiracy": {
		"Is {team} deliberately sandbagging in practice to hide true pace from {other}?",
		"Did {team} receive preferential treatment from race control at {circuit}?",
		"Is {driver} being quietly undermined by his own team in favor of {rival}?",
	},
	"technical": {
		"Is {team}'s floor design exploiting a loophole the regulations never intended?",
		"Does {team}'s straight-line speed advantage at {circuit} point to a trick rear wing?",
		"Has {team} found more from its power unit than the freeze should allow?",
	},
	"strategy": {
		"Was {team}'s tyre strategy at {circuit} a masterstroke or a blunder?",
		"Should {driver} have been given strategic priority over {rival} at {circuit}?",
		"Is the undercut overpowered at {circuit} given current tyre degradation?",
	},
	"historical": {
		"Is {driver}'s current season among the strongest ever driven for {team}?",
		"Was {circuit} a better test of driver skill in past eras than today?",
		"Has any team dominance matched what {team} is doing right now?",
	},
	"prediction": {
		"Will {driver} beat {rival} over the remaining races of the season?",
		"Will {team} out-develop {other} before the season ends?",
		"Will the next race at {circuit} produce a surprise podium?",
	},
}

// Topic is one generated debate subject.
type Topic struct {
	Text     string
	Category string
}

// PickCategory draws a category according to the weight table.
func PickCategory(rng *rand.Rand) string {
	total := 0
	for _, c := range categoryWeights {
		total += c.weight
	}
	n := rng.Intn(total)
	for _, c := range categoryWeights {
		if n < c.weight {
			return c.name
		}
		n -= c.weight
	}
	return categoryWeights[0].name
}

// GenerateTopic produces a topic in the given category by filling a random
// template. {other} is always a different team than {team} and {rival} a
// different driver than {driver}.
func GenerateTopic(rng *rand.Rand, category string) Topic {
	templates, ok := topicTemplates[category]
	if !ok {
		category = "technical"
		templates = topicTemplates[category]
	}
	text := templates[rng.Intn(len(templates))]

	team := Teams[rng.Intn(len(Teams))]
	other := pickDistinct(rng, Teams, team)
	driver := Drivers[rng.Intn(len(Drivers))]
	rival := pickDistinct(rng, Drivers, driver)
	circuit := Circuits[rng.Intn(len(Circuits))]

	r := strings.NewReplacer(
		"{team}", team,
		"{other}", other,
		"{driver}", driver,
		"{rival}", rival,
		"{circuit}", circuit,
	)
	return Topic{Text: r.Replace(text), Category: category}
}

// RandomTopic draws a weighted category and fills one of its templates.
func RandomTopic(rng *rand.Rand) Topic {
	return GenerateTopic(rng, PickCategory(rng))
}

func pickDistinct(rng *rand.Rand, pool []string, not string) string {
	for {
		candidate := pool[rng.Intn(len(pool))]
		if candidate != not {
			return candidate
		}
	}
}
