package search

import "fmt"

type Policy string

const (
	PolicySimilarity     Policy = "similarity"
	PolicyScoreThreshold Policy = "similarity_score_threshold"
	PolicyMMR            Policy = "mmr"
)

// Config encapsulates search parameters
type Config struct {
	Policy         Policy
	K              int
	ScoreThreshold float64 // PolicyScoreThreshold only
	FetchK         int     // PolicyMMR: candidates pulled before re-ranking
	LambdaMult     float64 // PolicyMMR: 1 favours relevance, 0 favours diversity
}

var policies = map[Policy]Config{
	PolicySimilarity: {
		Policy: PolicySimilarity,
		K:      3,
	},
	PolicyScoreThreshold: {
		Policy:         PolicyScoreThreshold,
		K:              3,
		ScoreThreshold: 0.1,
	},
	PolicyMMR: {
		Policy:     PolicyMMR,
		K:          3,
		FetchK:     20,
		LambdaMult: 0.5,
	},
}

// DefaultConfig returns default search configuration
func DefaultConfig() Config {
	return policies[PolicyScoreThreshold]
}

// ConfigFor looks a policy up by name. Empty means the default.
func ConfigFor(name string) (Config, error) {
	if name == "" {
		return DefaultConfig(), nil
	}
	cfg, ok := policies[Policy(name)]
	if !ok {
		return Config{}, fmt.Errorf("unknown search type %q", name)
	}
	return cfg, nil
}
