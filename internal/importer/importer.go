// Package importer turns pipe-delimited puzzle lines into puzzles.
//
// A line reads:
//
//	title | scenario | truth [| challenge | maxQuestions | persona | stages...]
//
// Stages follow as content|truth pairs, or content|truth|maxQuestions triples
// when the challenge flag is set.
package importer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

const minFields = 3

var (
	ErrMissingField = errors.New("missing required field")
	ErrBadBudget    = errors.New("question budget must be a positive integer")
)

// LineError reports a line that was rejected. The rest of the batch continues.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Result collects the outcome of a batch import.
type Result struct {
	Puzzles  []models.Puzzle
	Failures []*LineError
	Skipped  int // lines with fewer than three fields
}

func (r Result) Imported() int {
	return len(r.Puzzles)
}

// Import parses one puzzle per line of r. Lines have no length limit. A read
// error aborts the batch; bad lines are collected in Result.Failures.
func Import(r io.Reader, lang models.Language) (Result, error) {
	var res Result
	now := time.Now().UTC()

	br := bufio.NewReader(r)
	line := 0
	for {
		raw, err := br.ReadString('\n')
		if raw != "" {
			line++
			if text := strings.TrimSpace(raw); text != "" {
				res.add(line, strings.Split(text, "|"), lang, now)
			}
		}
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("reading import: %w", err)
		}
	}
}

func (r *Result) add(line int, fields []string, lang models.Language, now time.Time) {
	p, ok, err := ParseFields(fields)
	switch {
	case err != nil:
		r.Failures = append(r.Failures, &LineError{Line: line, Err: err})
	case !ok:
		r.Skipped++
	default:
		p.ID = uuid.NewString()
		p.Language = lang
		// Keep input order when listing newest first.
		p.CreatedAt = now.Add(-time.Duration(len(r.Puzzles)) * time.Millisecond)
		r.Puzzles = append(r.Puzzles, p)
	}
}

// ParseLine parses a single pipe-delimited line. ok is false when the line has
// fewer than three fields and should be skipped silently.
func ParseLine(line string) (p models.Puzzle, ok bool, err error) {
	return ParseFields(strings.Split(line, "|"))
}

// ParseFields parses already split fields. The returned puzzle has no ID,
// language or creation time.
func ParseFields(fields []string) (p models.Puzzle, ok bool, err error) {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = strings.TrimSpace(f)
	}
	if len(cols) < minFields {
		return models.Puzzle{}, false, nil
	}

	p = models.Puzzle{
		Title:    cols[0],
		Scenario: cols[1],
		Truth:    cols[2],
	}
	for i, name := range []string{"title", "scenario", "truth"} {
		if cols[i] == "" {
			return models.Puzzle{}, false, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}

	p.IsChallenge = truthy(field(cols, 3))
	if p.IsChallenge {
		if p.MaxQuestions, err = parseBudget(field(cols, 4)); err != nil {
			return models.Puzzle{}, false, err
		}
	}
	p.Persona = field(cols, 5)

	step := 2
	if p.IsChallenge {
		step = 3
	}
	for i := 6; i < len(cols); i += step {
		content, truth := field(cols, i), field(cols, i+1)
		if content == "" || truth == "" {
			continue
		}
		st := models.Stage{Content: content, Truth: truth}
		if p.IsChallenge {
			if st.MaxQuestions, err = parseBudget(field(cols, i+2)); err != nil {
				return models.Puzzle{}, false, fmt.Errorf("stage %d: %w", len(p.Stages)+1, err)
			}
		}
		p.Stages = append(p.Stages, st)
	}
	return p, true, nil
}

func field(cols []string, i int) string {
	if i < len(cols) {
		return cols[i]
	}
	return ""
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "true", "y", "是", "1":
		return true
	}
	return false
}

// parseBudget treats an empty field as no budget.
func parseBudget(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadBudget, s)
	}
	return &n, nil
}
