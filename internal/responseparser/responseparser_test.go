package responseparser

import (
	"testing"

	"sqlgateway/internal/gatewayerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullJSONObject(t *testing.T) {
	text := `{"sql_query": "SELECT id, amount FROM sales WHERE id = 1", "explanation": "fetch the row", "resolved_entities": [{"original_term": "abracadabra", "resolved_value": "1", "source_server": "metadata", "confidence": 0.9}]}`

	sql, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, amount FROM sales WHERE id = 1", sql.SQLText)
	assert.Equal(t, "fetch the row", sql.Explanation)
	assert.Equal(t, 1.0, sql.Confidence)
	require.Len(t, sql.ResolvedEntities, 1)
	assert.Equal(t, "abracadabra", sql.ResolvedEntities[0].OriginalTerm)
}

func TestParse_FencedJSONBlock(t *testing.T) {
	text := "Here is the query:\n```json\n{\"sql_query\": \"SELECT * FROM sales\", \"explanation\": \"all rows\"}\n```\nLet me know if that helps."

	sql, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM sales", sql.SQLText)
	assert.Equal(t, 1.0, sql.Confidence)
}

func TestParse_FencedUntaggedBlock(t *testing.T) {
	text := "```\n{\"sql_query\": \"SELECT * FROM sales\"}\n```"

	sql, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM sales", sql.SQLText)
}

func TestParse_StructuredText(t *testing.T) {
	text := "SELECT id, amount FROM sales WHERE amount > 100;\n\nExplanation: returns large sales.\n\nChanges Made:\n- none\n\nResolved Entities:\n- abracadabra -> 1\n"

	sql, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, amount FROM sales WHERE amount > 100", sql.SQLText)
	assert.Equal(t, "returns large sales.", sql.Explanation)
	assert.Equal(t, 0.8, sql.Confidence)
	assert.Contains(t, sql.ChangesMade, "none")
	require.Len(t, sql.ResolvedEntities, 1)
	assert.Equal(t, "abracadabra", sql.ResolvedEntities[0].OriginalTerm)
	assert.Equal(t, "1", sql.ResolvedEntities[0].ResolvedValue)
}

func TestParse_SQLOnlyLastResort(t *testing.T) {
	text := "I think the answer is\nSELECT id FROM sales\nwhich should work."

	sql, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM sales\nwhich should work.", sql.SQLText)
	assert.Equal(t, 0.5, sql.Confidence)
}

func TestParse_RejectsDisallowedKeyword(t *testing.T) {
	text := `{"sql_query": "DROP TABLE sales"}`

	_, err := Parse(text)
	require.Error(t, err)
	var gwErr *gatewayerrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, gatewayerrors.KindSQLValidationError, gwErr.Kind)
}

func TestParse_RejectsMissingFrom(t *testing.T) {
	text := `{"sql_query": "SELECT 1"}`

	_, err := Parse(text)
	assert.Error(t, err)
}

func TestParse_RejectsUnbalancedParens(t *testing.T) {
	text := `{"sql_query": "SELECT COUNT(id FROM sales"}`

	_, err := Parse(text)
	assert.Error(t, err)
}

func TestParse_FallsThroughToNextStageOnInvalidJSON(t *testing.T) {
	text := `{"sql_query": "DROP TABLE sales"}` + "\n\nSELECT id FROM sales"

	sql, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM sales", sql.SQLText)
}

func TestParse_AllStagesFail(t *testing.T) {
	_, err := Parse("no sql here at all")
	assert.Error(t, err)
}

func TestParse_DisallowedKeywordAsSubstringIsNotFlagged(t *testing.T) {
	text := `{"sql_query": "SELECT created_at FROM sales"}`

	sql, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT created_at FROM sales", sql.SQLText)
}
