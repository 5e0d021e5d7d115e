// Package responseparser turns an opaque LLM text reply into a validated
// domain.GeneratedSQL, trying a chain of extraction strategies in order and
// accepting the first one whose output passes validation (spec.md §4.6).
package responseparser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"sqlgateway/internal/domain"
	"sqlgateway/internal/gatewayerrors"
)

// disallowedKeywords mirrors the statement-scope prohibition in spec.md
// §3.2: any of these at top level makes the SQL unexecutable.
var disallowedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE", "GRANT", "REVOKE", "MERGE",
}

// errDisallowedStatement marks a validate() failure caused by a disallowed
// keyword rather than a malformed/unparseable reply, so Parse can surface
// SQLValidationError instead of ResponseParseError (spec.md §7, §8 scenario 6).
var errDisallowedStatement = errors.New("disallowed statement keyword")

type rawResponse struct {
	SQLQuery         string                  `json:"sql_query"`
	ResolvedEntities []domain.ResolvedEntity `json:"resolved_entities"`
	Explanation      string                  `json:"explanation"`
	ChangesMade      []string                `json:"changes_made"`
}

// Parse runs the four-stage parser chain and validates whichever stage
// first produces a result. Any validation failure causes the next stage to
// be attempted. If every stage fails, it returns SQLValidationError when any
// stage's candidate was rejected for containing a disallowed statement
// keyword, or ResponseParseError otherwise (spec.md §7, §8 scenario 6).
func Parse(text string) (domain.GeneratedSQL, error) {
	stages := []func(string) (domain.GeneratedSQL, bool){
		parseJSONObject,
		parseFencedCodeBlock,
		parseStructuredText,
		parseSQLOnly,
	}

	var disallowed error
	for _, stage := range stages {
		sql, ok := stage(text)
		if !ok {
			continue
		}
		if err := validate(sql.SQLText); err != nil {
			if disallowed == nil && errors.Is(err, errDisallowedStatement) {
				disallowed = err
			}
			continue
		}
		return sql, nil
	}

	if disallowed != nil {
		return domain.GeneratedSQL{}, gatewayerrors.New(gatewayerrors.KindSQLValidationError, disallowed.Error())
	}
	return domain.GeneratedSQL{}, gatewayerrors.New(gatewayerrors.KindResponseParseError, "no parser produced a valid SQL statement")
}

// parseJSONObject tries the entire body as a JSON object with sql_query.
func parseJSONObject(text string) (domain.GeneratedSQL, bool) {
	var raw rawResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return domain.GeneratedSQL{}, false
	}
	if raw.SQLQuery == "" {
		return domain.GeneratedSQL{}, false
	}
	return toGeneratedSQL(raw, 1.0), true
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// parseFencedCodeBlock extracts the first fenced block (tagged json or
// untagged) and parses it as a JSON object.
func parseFencedCodeBlock(text string) (domain.GeneratedSQL, bool) {
	match := fencedBlockPattern.FindStringSubmatch(text)
	if match == nil {
		return domain.GeneratedSQL{}, false
	}
	return parseJSONObject(match[1])
}

var (
	selectStatementPattern = regexp.MustCompile(`(?is)(SELECT\b.*?)(;|$)`)
	explanationPattern      = regexp.MustCompile(`(?is)Explanation\s*:\s*(.*?)(\n\n|\z)`)
	resolvedEntitiesPattern = regexp.MustCompile(`(?is)Resolved Entities\s*:\s*(.*?)(\n\n|\z)`)
	changesMadePattern      = regexp.MustCompile(`(?is)Changes Made\s*:\s*(.*?)(\n\n|\z)`)
)

// parseStructuredText extracts the first SELECT…; statement plus optional
// labeled sections (Explanation, Resolved Entities, Changes Made).
func parseStructuredText(text string) (domain.GeneratedSQL, bool) {
	match := selectStatementPattern.FindStringSubmatch(text)
	if match == nil || match[2] != ";" {
		return domain.GeneratedSQL{}, false
	}

	sql := domain.GeneratedSQL{
		SQLText:    strings.TrimSpace(match[1]),
		Confidence: 0.8,
	}
	if m := explanationPattern.FindStringSubmatch(text); m != nil {
		sql.Explanation = strings.TrimSpace(m[1])
	}
	if m := changesMadePattern.FindStringSubmatch(text); m != nil {
		sql.ChangesMade = splitLines(m[1])
	}
	if m := resolvedEntitiesPattern.FindStringSubmatch(text); m != nil {
		sql.ResolvedEntities = parseResolvedEntityLines(m[1])
	}
	return sql, true
}

// parseSQLOnly is the last-resort stage: the first SELECT… run, confidence
// fixed at 0.5.
func parseSQLOnly(text string) (domain.GeneratedSQL, bool) {
	match := selectStatementPattern.FindStringSubmatch(text)
	if match == nil {
		return domain.GeneratedSQL{}, false
	}
	return domain.GeneratedSQL{
		SQLText:    strings.TrimSpace(match[1]),
		Confidence: 0.5,
	}, true
}

func toGeneratedSQL(raw rawResponse, confidence float64) domain.GeneratedSQL {
	return domain.GeneratedSQL{
		SQLText:          strings.TrimSpace(raw.SQLQuery),
		ResolvedEntities: raw.ResolvedEntities,
		Explanation:      raw.Explanation,
		ChangesMade:      raw.ChangesMade,
		Confidence:       confidence,
	}
}

func splitLines(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// parseResolvedEntityLines is a best-effort parse of "term -> value (server)"
// style lines; a malformed line is skipped rather than failing the stage.
func parseResolvedEntityLines(block string) []domain.ResolvedEntity {
	var out []domain.ResolvedEntity
	for _, line := range splitLines(block) {
		parts := strings.SplitN(line, "->", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, domain.ResolvedEntity{
			OriginalTerm:  strings.TrimSpace(parts[0]),
			ResolvedValue: strings.TrimSpace(parts[1]),
			Confidence:    1.0,
		})
	}
	return out
}

// validate applies the structural checks spec.md §4.6 requires before a
// parsed candidate is accepted.
func validate(sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return fmt.Errorf("empty sql_text")
	}

	upper := strings.ToUpper(sqlText)

	for _, kw := range disallowedKeywords {
		if containsWord(upper, kw) {
			return fmt.Errorf("%w: %s", errDisallowedStatement, kw)
		}
	}

	if !strings.Contains(upper, "SELECT") || !strings.Contains(upper, "FROM") {
		return fmt.Errorf("missing SELECT/FROM")
	}

	if !balancedParens(sqlText) {
		return fmt.Errorf("unbalanced parentheses")
	}

	return nil
}

func containsWord(upper, word string) bool {
	idx := 0
	for {
		pos := strings.Index(upper[idx:], word)
		if pos < 0 {
			return false
		}
		pos += idx
		before := pos == 0 || !isWordChar(upper[pos-1])
		afterPos := pos + len(word)
		after := afterPos >= len(upper) || !isWordChar(upper[afterPos])
		if before && after {
			return true
		}
		idx = pos + len(word)
	}
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func balancedParens(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}
