package debate

import (
	"regexp"
	"strconv"
)

// Verdict outcomes.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
	VerdictDraw = "draw"
)

var (
	resolutionRe = regexp.MustCompile(`RESOLUTION:\s*(-?\d+)\s*/\s*100`)
	confidentRe  = regexp.MustCompile(`(?i)(-?\d+)\s*%\s*confident`)
)

// ExtractScore pulls an agent's self-assessed score out of its closing
// statement. The primary form is "RESOLUTION: N/100"; "N% confident" is the
// fallback; with neither present the agent scores a neutral 50. Scores are
// clamped to [0,100].
func ExtractScore(text string) int {
	if m := resolutionRe.FindStringSubmatch(text); m != nil {
		return clampScore(m[1])
	}
	if m := confidentRe.FindStringSubmatch(text); m != nil {
		return clampScore(m[1])
	}
	return 50
}

func clampScore(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 50
	}
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// Verdict is the scored outcome of a debate.
type Verdict struct {
	Outcome    string         `json:"outcome"`
	Confidence float64        `json:"confidence"`
	Average    float64        `json:"average"`
	Scores     map[string]int `json:"scores"`
}

// Score turns the per-agent conclusion scores into a verdict. Average >= 70
// passes with confidence equal to the average; average <= 35 fails with
// confidence 100 minus the average; anything between is a draw whose
// confidence grows with distance from the 50 midpoint.
func Score(scores map[string]int) Verdict {
	v := Verdict{Outcome: VerdictDraw, Scores: scores}
	if len(scores) == 0 {
		return v
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	avg := float64(sum) / float64(len(scores))
	v.Average = avg
	switch {
	case avg >= 70:
		v.Outcome = VerdictPass
		v.Confidence = avg
	case avg <= 35:
		v.Outcome = VerdictFail
		v.Confidence = 100 - avg
	default:
		v.Outcome = VerdictDraw
		diff := avg - 50
		if diff < 0 {
			diff = -diff
		}
		v.Confidence = diff * 2
	}
	return v
}
