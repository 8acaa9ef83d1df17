package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GroundScore holds the groundedness criterion, which the judge may
// return as an integer or the literal string "N/A".
type GroundScore struct {
	Score int
	NA    bool
}

func (g *GroundScore) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		g.Score = n
		g.NA = false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && strings.EqualFold(strings.TrimSpace(s), "N/A") {
		g.NA = true
		return nil
	}
	return fmt.Errorf("groundedness must be an integer or \"N/A\", got %s", string(data))
}

func (g GroundScore) MarshalJSON() ([]byte, error) {
	if g.NA {
		return json.Marshal("N/A")
	}
	return json.Marshal(g.Score)
}

// BaselineScores is the judge's rubric for the baseline response.
type BaselineScores struct {
	Relevance           int `json:"relevance"`
	FactualAccuracy     int `json:"factual_accuracy"`
	Specificity         int `json:"specificity"`
	TemporalAccuracy    int `json:"temporal_accuracy"`
	Completeness        int `json:"completeness"`
	Coherence           int `json:"coherence"`
	LackOfHallucination int `json:"lack_of_hallucination"`
}

// RAGScores adds the groundedness criterion the baseline lacks.
type RAGScores struct {
	Relevance           int         `json:"relevance"`
	FactualAccuracy     int         `json:"factual_accuracy"`
	Specificity         int         `json:"specificity"`
	Groundedness        GroundScore `json:"groundedness_to_source"`
	TemporalAccuracy    int         `json:"temporal_accuracy"`
	Completeness        int         `json:"completeness"`
	Coherence           int         `json:"coherence"`
	LackOfHallucination int         `json:"lack_of_hallucination"`
}

// JudgeVerdict is the parsed judge output. Raw keeps the judge's text
// verbatim so a suspicious score can always be audited.
type JudgeVerdict struct {
	BaselineScores     BaselineScores `json:"baseline_scores"`
	RAGScores          RAGScores      `json:"rag_scores"`
	ComparativeSummary string         `json:"comparative_summary"`
	Raw                string         `json:"-"`
}

// ParseJudgeVerdict extracts and decodes the JSON object from a judge
// response. Judges routinely wrap the object in a markdown code fence
// or surround it with prose, so extraction tries the fence first and
// falls back to the outermost braces.
func ParseJudgeVerdict(raw string) (*JudgeVerdict, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return nil, fmt.Errorf("judge response is not valid JSON: %w", err)
	}
	for _, key := range []string{"baseline_scores", "rag_scores", "comparative_summary"} {
		if _, ok := probe[key]; !ok {
			return nil, fmt.Errorf("judge response is missing %q", key)
		}
	}

	verdict := &JudgeVerdict{Raw: raw}
	if err := json.Unmarshal([]byte(payload), verdict); err != nil {
		return nil, fmt.Errorf("failed to decode judge response: %w", err)
	}
	return verdict, nil
}

func extractJSON(raw string) (string, error) {
	if start := strings.Index(raw, "```json"); start >= 0 {
		rest := raw[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), nil
		}
	}

	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first < 0 || last <= first {
		return "", fmt.Errorf("no JSON object found in judge response")
	}
	return raw[first : last+1], nil
}
