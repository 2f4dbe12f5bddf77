package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleStep(t *testing.T) {
	raw := `{
		"analysis": "User wants to add 25 and 15",
		"tools_needed": [
			{"tool": "calc:Add", "parameters": {"A": "25", "B": "15"}, "order": 1, "description": "add the numbers"}
		],
		"execution_plan": "one addition"
	}`

	p, err := Parse(raw)
	require.NoError(t, err)

	require.Len(t, p.Steps, 1)
	assert.Equal(t, "calc:Add", p.Steps[0].Tool)
	assert.Equal(t, "25", p.Steps[0].Parameters["A"])
	assert.Equal(t, "15", p.Steps[0].Parameters["B"])
	assert.Equal(t, 1, p.Steps[0].Order)
	assert.False(t, p.Empty())
}

func TestParse_MarkdownWrapped(t *testing.T) {
	raw := "```json\n{\"analysis\": \"a\", \"tools_needed\": [], \"execution_plan\": \"p\"}\n```"

	p, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, p.Empty())
	assert.Equal(t, "a", p.Analysis)
}

func TestParse_EmptyStepsIsValid(t *testing.T) {
	// Пустой но присутствующий список — валидный "no tool execution needed"
	p, err := Parse(`{"analysis": "no tools needed", "tools_needed": [], "execution_plan": ""}`)
	require.NoError(t, err)
	assert.True(t, p.Empty())
}

func TestParse_MissingStepsFieldIsError(t *testing.T) {
	// Отсутствующее поле — ошибка, в отличие от пустого списка
	_, err := Parse(`{"analysis": "x", "execution_plan": "y"}`)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Reason, "tools_needed")
}

func TestParse_NotDecodable(t *testing.T) {
	_, err := Parse("{broken")
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestParse_EmptyDocument(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParse_StepWithoutTool(t *testing.T) {
	_, err := Parse(`{"analysis": "", "tools_needed": [{"parameters": {}}], "execution_plan": ""}`)
	assert.Error(t, err)
}

func TestParse_OrderDefaultsToPosition(t *testing.T) {
	raw := `{
		"analysis": "",
		"tools_needed": [
			{"tool": "calc:Add", "parameters": {}},
			{"tool": "calc:Subtract", "parameters": {}}
		],
		"execution_plan": ""
	}`

	p, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, 1, p.Steps[0].Order)
	assert.Equal(t, 2, p.Steps[1].Order)
}

func TestParse_SortsByOrder(t *testing.T) {
	raw := `{
		"analysis": "",
		"tools_needed": [
			{"tool": "calc:Subtract", "parameters": {}, "order": 2},
			{"tool": "calc:Add", "parameters": {}, "order": 1}
		],
		"execution_plan": ""
	}`

	p, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "calc:Add", p.Steps[0].Tool)
	assert.Equal(t, "calc:Subtract", p.Steps[1].Tool)
}

func TestParse_EqualOrderKeepsDocumentPosition(t *testing.T) {
	// Tie-break: при равных order сохраняется порядок исходного массива
	raw := `{
		"analysis": "",
		"tools_needed": [
			{"tool": "calc:Add", "parameters": {}, "order": 1},
			{"tool": "calc:Subtract", "parameters": {}, "order": 1},
			{"tool": "calc:History", "parameters": {}, "order": 1}
		],
		"execution_plan": ""
	}`

	p, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "calc:Add", p.Steps[0].Tool)
	assert.Equal(t, "calc:Subtract", p.Steps[1].Tool)
	assert.Equal(t, "calc:History", p.Steps[2].Tool)
}

func TestParse_NilParametersBecomesEmptyMap(t *testing.T) {
	p, err := Parse(`{"analysis": "", "tools_needed": [{"tool": "calc:Clear"}], "execution_plan": ""}`)
	require.NoError(t, err)

	assert.NotNil(t, p.Steps[0].Parameters)
	assert.Empty(t, p.Steps[0].Parameters)
}
