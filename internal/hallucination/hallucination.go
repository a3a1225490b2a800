// Package hallucination classifies (prompt, response) pairs into a fixed
// set of suspicious-output reasons using cheap lexical heuristics.
package hallucination

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/parallelrag/ragd/internal/tokens"
)

// Reason identifies which heuristic tripped, or that none did.
type Reason string

const (
	ReasonInsufficientData Reason = "insufficient_data"
	ReasonEmptyResponse    Reason = "empty_response"
	ReasonRepetition       Reason = "repetition_high_similarity"
	ReasonGibberish        Reason = "gibberish_low_ttr"
	ReasonPass             Reason = "pass"
)

const (
	// A response nearly identical to the prompt is suspicious only when it
	// isn't substantially longer than the prompt.
	similarityThreshold = 0.95
	lengthRatioLimit    = 1.5

	// Type-token ratio is only meaningful past a minimum token count.
	minTokensForTTR = 10
	ttrThreshold    = 0.1
)

// Result is the outcome of a classification. Rate is always in [0, 1].
type Result struct {
	Flag   bool
	Rate   float64
	Reason Reason
}

// Classify evaluates the heuristics in fixed precedence order; the first
// match wins. It is a pure function and never fails.
func Classify(prompt, response string) Result {
	if prompt == "" || response == "" {
		return Result{Reason: ReasonInsufficientData}
	}

	promptLower := strings.ToLower(strings.TrimSpace(prompt))
	responseLower := strings.ToLower(strings.TrimSpace(response))

	if len(responseLower) == 0 {
		return Result{Flag: true, Rate: 1.0, Reason: ReasonEmptyResponse}
	}

	similarity := strutil.Similarity(promptLower, responseLower, metrics.NewJaroWinkler())
	if similarity > similarityThreshold && float64(len(responseLower)) < float64(len(promptLower))*lengthRatioLimit {
		return Result{Flag: true, Rate: similarity, Reason: ReasonRepetition}
	}

	toks := tokens.Tokenize(responseLower)
	if len(toks) > minTokensForTTR {
		unique := make(map[string]struct{}, len(toks))
		for _, tok := range toks {
			unique[tok] = struct{}{}
		}
		ttr := float64(len(unique)) / float64(len(toks))
		if ttr < ttrThreshold {
			return Result{Flag: true, Rate: 1 - ttr, Reason: ReasonGibberish}
		}
	}

	return Result{Reason: ReasonPass}
}
