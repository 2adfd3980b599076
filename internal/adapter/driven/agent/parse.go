package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// jsonObject matches brace-balanced objects up to two levels deep, enough
// for a verdict with an array of annotation objects.
var jsonObject = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

type verdictJSON struct {
	Action   string `json:"action"`
	Comment  string `json:"comment"`
	Summary  string `json:"summary"`
	Reason   string `json:"reason"`
	Comments []struct {
		File    string `json:"file"`
		Line    int    `json:"line"`
		Message string `json:"message"`
	} `json:"comments"`
}

// ParseVerdict extracts the first valid verdict object from free-form agent
// output. It scans embedded JSON objects first and then whole lines that
// look like JSON. Candidates with an unknown action are skipped. When no
// candidate qualifies it returns an error wrapping driven.ErrMalformedOutput.
func ParseVerdict(output string) (model.Verdict, error) {
	for _, candidate := range jsonObject.FindAllString(output, -1) {
		if v, ok := decodeVerdict(candidate); ok {
			return v, nil
		}
	}

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		if v, ok := decodeVerdict(line); ok {
			return v, nil
		}
	}

	return model.Verdict{}, fmt.Errorf("%w (output length %d)", driven.ErrMalformedOutput, len(output))
}

func decodeVerdict(candidate string) (model.Verdict, bool) {
	var raw verdictJSON
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &raw); err != nil {
		return model.Verdict{}, false
	}

	kind := model.VerdictKind(raw.Action)
	if !kind.Valid() {
		if raw.Action != "" {
			slog.Debug("agent output has unknown action", "action", raw.Action)
		}
		return model.Verdict{}, false
	}

	v := model.Verdict{
		Kind:    kind,
		Comment: raw.Comment,
		Summary: raw.Summary,
		Reason:  raw.Reason,
	}
	for _, c := range raw.Comments {
		if c.File == "" || c.Line < 1 || c.Message == "" {
			slog.Warn("dropping unusable inline comment from agent output", "file", c.File, "line", c.Line)
			continue
		}
		v.Annotations = append(v.Annotations, model.Annotation{File: c.File, Line: c.Line, Message: c.Message})
	}
	return v, true
}
