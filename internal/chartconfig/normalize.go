// Package chartconfig turns loosely formatted chart configuration strings
// into domain.ChartSpec values and prepares them for rendering.
package chartconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dunamismax/chartflow/internal/domain"
)

const (
	StrategyStrict         = "strict"
	StrategyPercentDecoded = "percent_decoded"
	StrategyLenient        = "lenient"

	parseErrorMessage    = "Invalid chart configuration. Must be valid JSON or JavaScript object notation."
	parseErrorSuggestion = "Try URL-encoding your JSON or use proper JSON format"
	receivedPreviewRunes = 100
)

var (
	ErrInvalidConfiguration = errors.New("invalid chart configuration")
	errNotAnObject          = errors.New("chart configuration must be a JSON object")
)

// ParseError is returned when no strategy could make sense of the input.
type ParseError struct {
	Message    string
	Received   string
	Suggestion string
	Attempts   []error
}

func (e *ParseError) Error() string {
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidConfiguration
}

type Result struct {
	Chart    domain.ChartSpec
	Strategy string
}

type strategy struct {
	name  string
	parse func(string) (domain.ChartSpec, error)
}

var strategies = []strategy{
	{name: StrategyStrict, parse: parseStrict},
	{name: StrategyPercentDecoded, parse: parsePercentDecoded},
	{name: StrategyLenient, parse: parseLenient},
}

// Normalize parses raw with the first strategy that succeeds.
func Normalize(raw string) (domain.ChartSpec, error) {
	res, err := Parse(raw)
	if err != nil {
		return domain.ChartSpec{}, err
	}
	return res.Chart, nil
}

// Parse is Normalize that also reports which strategy produced the chart.
func Parse(raw string) (Result, error) {
	attempts := make([]error, 0, len(strategies))
	for _, s := range strategies {
		chart, err := attempt(s, raw)
		if err == nil {
			return Result{Chart: chart, Strategy: s.name}, nil
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", s.name, err))
	}

	return Result{}, &ParseError{
		Message:    parseErrorMessage,
		Received:   preview(raw),
		Suggestion: parseErrorSuggestion,
		Attempts:   attempts,
	}
}

func attempt(s strategy, raw string) (chart domain.ChartSpec, err error) {
	defer func() {
		if r := recover(); r != nil {
			chart = domain.ChartSpec{}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.parse(raw)
}

func parseStrict(raw string) (domain.ChartSpec, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.ChartSpec{}, errNotAnObject
	}

	var chart domain.ChartSpec
	if err := json.Unmarshal(trimmed, &chart); err != nil {
		return domain.ChartSpec{}, err
	}
	return chart, nil
}

func parsePercentDecoded(raw string) (domain.ChartSpec, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return domain.ChartSpec{}, fmt.Errorf("percent-decode: %w", err)
	}
	return parseStrict(decoded)
}

var (
	bareKeyPattern       = regexp.MustCompile(`(\w+):`)
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
)

// RepairObjectNotation applies the best-effort rewrites used by the lenient
// strategy. It is a textual heuristic and not string-literal aware: every
// word directly before a colon is quoted, including ones inside values such
// as 'http://host'.
func RepairObjectNotation(raw string) string {
	out := bareKeyPattern.ReplaceAllString(raw, `"${1}":`)
	out = strings.ReplaceAll(out, "'", `"`)
	out = trailingCommaPattern.ReplaceAllString(out, "${1}")
	return out
}

func parseLenient(raw string) (domain.ChartSpec, error) {
	return parseStrict(RepairObjectNotation(raw))
}

func preview(raw string) string {
	runes := []rune(raw)
	if len(runes) > receivedPreviewRunes {
		runes = runes[:receivedPreviewRunes]
	}
	return string(runes) + "..."
}
