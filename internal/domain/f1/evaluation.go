package f1

// TierThresholds are the minimum evaluation scores (0-100) required for
// admission into each tier.
var TierThresholds = map[int]float64{
	1: 75,
	2: 85,
	3: 50,
}

// EvalQuestion is one admission question with the keywords a sound answer
// mentions. Keywords drive the fallback scorer when no judge model is
// available.
type EvalQuestion struct {
	Question string
	Keywords []string
}

// QuestionBanks holds the admission questions per tier.
var QuestionBanks = map[int][]EvalQuestion{
	1: {
		{"Explain when DRS may be used during a race and why the rule exists.", []string{"one second", "detection", "overtak"}},
		{"What makes the undercut effective, and when does it fail?", []string{"fresh", "out-lap", "degradation"}},
		{"How does a safety car period change strategic calculations?", []string{"pit", "compress", "gap"}},
		{"Why do teams run different wing levels at Monza versus Monaco?", []string{"drag", "downforce", "speed"}},
	},
	2: {
		{"A theory claims a team is sandbagging in practice. What evidence would validate or reject it?", []string{"pace", "fuel", "evidence"}},
		{"Two knowledge facts contradict each other. Walk through how you resolve it.", []string{"confidence", "source", "contradict"}},
		{"When should a plausible theory still be rejected?", []string{"unsupported", "evidence", "reject"}},
	},
	3: {
		{"What are the three dry tyre compounds available each weekend?", []string{"soft", "medium", "hard"}},
		{"What is parc ferme and when does it apply?", []string{"qualifying", "setup", "freeze"}},
	},
}
