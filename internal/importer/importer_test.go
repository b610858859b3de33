package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

func TestParseLineMinimal(t *testing.T) {
	p, ok, err := ParseLine("A|B|C")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "A", p.Title)
	assert.Equal(t, "B", p.Scenario)
	assert.Equal(t, "C", p.Truth)
	assert.False(t, p.IsChallenge)
	assert.Nil(t, p.MaxQuestions)
	assert.Empty(t, p.Stages)
}

func TestParseLineChallengeWithStage(t *testing.T) {
	p, ok, err := ParseLine("A|B|C|yes|5|host|S1content|S1truth|3")
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, p.IsChallenge)
	require.NotNil(t, p.MaxQuestions)
	assert.Equal(t, 5, *p.MaxQuestions)
	assert.Equal(t, "host", p.Persona)
	require.Len(t, p.Stages, 1)
	assert.Equal(t, "S1content", p.Stages[0].Content)
	assert.Equal(t, "S1truth", p.Stages[0].Truth)
	require.NotNil(t, p.Stages[0].MaxQuestions)
	assert.Equal(t, 3, *p.Stages[0].MaxQuestions)
}

func TestParseLineTooFewFields(t *testing.T) {
	_, ok, err := ParseLine("A|B")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestParseLineTrimsAndTruthyTokens(t *testing.T) {
	for _, token := range []string{"yes", "YES", "true", "Y", "是", "1"} {
		p, ok, err := ParseLine("  A |  B | C | " + token + " | 4 ")
		require.NoError(t, err, token)
		require.True(t, ok, token)
		assert.Equal(t, "A", p.Title)
		assert.True(t, p.IsChallenge, token)
		require.NotNil(t, p.MaxQuestions, token)
		assert.Equal(t, 4, *p.MaxQuestions)
	}

	p, _, err := ParseLine("A|B|C|no|not-a-number")
	require.NoError(t, err, "budget is ignored outside challenge mode")
	assert.False(t, p.IsChallenge)
	assert.Nil(t, p.MaxQuestions)
}

func TestParseLineCasualStagesUseStrideTwo(t *testing.T) {
	p, ok, err := ParseLine("A|B|C|no||persona|s1|t1|s2|t2|dangling")
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, p.Stages, 2)
	assert.Equal(t, "s2", p.Stages[1].Content)
	assert.Nil(t, p.Stages[1].MaxQuestions)
}

func TestParseLineDropsIncompleteStages(t *testing.T) {
	p, _, err := ParseLine("A|B|C|y|5||s1||2|s2|t2|")
	require.NoError(t, err)

	require.Len(t, p.Stages, 1)
	assert.Equal(t, "s2", p.Stages[0].Content)
	assert.Nil(t, p.Stages[0].MaxQuestions, "missing stage budget carries over")
}

func TestParseLineErrors(t *testing.T) {
	cases := map[string]error{
		"A||C":                ErrMissingField,
		"A|B|C|yes|zero":      ErrBadBudget,
		"A|B|C|yes|-2":        ErrBadBudget,
		"A|B|C|yes|5||s|t|x":  ErrBadBudget,
		" | B | C | yes | 5 ": ErrMissingField,
	}
	for line, want := range cases {
		_, ok, err := ParseLine(line)
		assert.ErrorIs(t, err, want, line)
		assert.False(t, ok, line)
	}
}

func TestImportBatch(t *testing.T) {
	input := strings.Join([]string{
		"First|scenario one|truth one",
		"",
		"too|short",
		"Bad|s|t|yes|many",
		"Second|scenario two|truth two|是|10|侦探|c1|a1|3",
	}, "\n")

	res, err := Import(strings.NewReader(input), models.LanguageZH)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported())
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 4, res.Failures[0].Line)
	assert.ErrorIs(t, res.Failures[0], ErrBadBudget)

	first, second := res.Puzzles[0], res.Puzzles[1]
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, models.LanguageZH, first.Language)
	assert.True(t, first.CreatedAt.After(second.CreatedAt), "earlier lines list first")
	assert.Equal(t, 2, second.TotalStages())
	for _, p := range res.Puzzles {
		assert.NoError(t, p.Validate())
	}
}

func TestImportKeepsGoingPastHugeLine(t *testing.T) {
	huge := "Big|" + strings.Repeat("x", 2<<20) + "|truth"
	input := "A|B|C\n" + huge + "\nD|E|F\n"

	res, err := Import(strings.NewReader(input), models.LanguageEN)
	require.NoError(t, err)

	require.Equal(t, 3, res.Imported())
	assert.Empty(t, res.Failures)
	assert.Equal(t, "A", res.Puzzles[0].Title)
	assert.Len(t, res.Puzzles[1].Scenario, 2<<20)
	assert.Equal(t, "D", res.Puzzles[2].Title)
}

func TestImportWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Title", "Scenario", "Truth", "Challenge", "Max"},
		{"Albatross", "He drinks soup", "Shipwreck", "yes", 20},
		{},
		{"Short", "only two"},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := ImportWorkbook(bytes.NewReader(buf.Bytes()), models.LanguageEN)
	require.NoError(t, err)

	require.Equal(t, 1, res.Imported())
	assert.Equal(t, 1, res.Skipped)
	p := res.Puzzles[0]
	assert.Equal(t, "Albatross", p.Title)
	assert.True(t, p.IsChallenge)
	require.NotNil(t, p.MaxQuestions)
	assert.Equal(t, 20, *p.MaxQuestions)
}
