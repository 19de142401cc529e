package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseError reports malformed structured output with the position of the
// failure inside the raw text.
type ParseError struct {
	Stage  string
	Line   int
	Column int
	Offset int64
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("stage %s output invalid at line %d column %d: %s", e.Stage, e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("stage %s output invalid: %s", e.Stage, e.Reason)
}

// ParseStageOutput decodes one stage's raw text into its structured form.
// Markdown code fences around the JSON body are tolerated. Validation
// happens once here at the orchestration boundary; Required fields of the
// definition must be present.
func ParseStageOutput(def Definition, raw string) (map[string]any, error) {
	body := stripFences(raw)
	if strings.TrimSpace(body) == "" {
		return nil, &ParseError{Stage: def.ID, Reason: "empty output"}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, positionAware(def.ID, body, err)
	}

	var missing []string
	for _, field := range def.Required {
		if _, ok := parsed[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{
			Stage:  def.ID,
			Reason: fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")),
		}
	}
	return parsed, nil
}

func positionAware(stageID, body string, err error) *ParseError {
	var offset int64 = -1
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	parseErr := &ParseError{Stage: stageID, Reason: err.Error()}
	if offset >= 0 {
		parseErr.Offset = offset
		parseErr.Line, parseErr.Column = lineColumn(body, offset)
	}
	return parseErr
}

func lineColumn(body string, offset int64) (int, int) {
	line, column := 1, 1
	for i, r := range body {
		if int64(i) >= offset {
			break
		}
		if r == '\n' {
			line++
			column = 1
			continue
		}
		column++
	}
	return line, column
}

func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		// Drop a language hint like ```json.
		if !strings.ContainsAny(trimmed[:newline], "{[") {
			trimmed = trimmed[newline+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
