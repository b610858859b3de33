package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lasersoldier/Turtle-Soup/internal/engine"
	"github.com/lasersoldier/Turtle-Soup/internal/logging"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/oracle"
	"github.com/lasersoldier/Turtle-Soup/internal/store"
)

func newTestModel(t *testing.T) model {
	t.Helper()
	mem := store.NewMemory()
	logger := logging.Discard()
	if err := store.SeedDemo(context.Background(), logger, mem); err != nil {
		t.Fatalf("seed: %v", err)
	}
	games := engine.NewManager(mem, mem, oracle.NewOffline(), logger)
	return NewModel(games, mem, models.LanguageZH)
}

// step feeds msg to the model and runs the returned command once, feeding its
// message back in.
func step(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(model)
	if cmd == nil {
		return m
	}
	out := cmd()
	switch out.(type) {
	case puzzlesLoadedMsg, gameLoadedMsg, answeredMsg, actionDoneMsg:
		next, _ = m.Update(out)
		m = next.(model)
	}
	return m
}

func typeLine(t *testing.T, m model, line string) model {
	t.Helper()
	m.textInput.SetValue(line)
	return step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestPlayThroughStages(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.loadPuzzles()())
	if m.state != stateList || len(m.list) != 2 {
		t.Fatalf("Expected list of 2 puzzles, got state %d with %d", m.state, len(m.list))
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != statePlaying || m.puzzle.ID != "demo-zh-parcel" {
		t.Fatalf("Expected to play the parcel puzzle, got state %d puzzle %q", m.state, m.puzzle.ID)
	}

	m = typeLine(t, m, "/start")
	if m.snap.Status != models.StatusPlaying {
		t.Fatalf("Expected PLAYING after /start, got %s", m.snap.Status)
	}

	m = typeLine(t, m, "答案是降落伞吗")
	if m.snap.CurrentStageIndex != 1 {
		t.Errorf("Expected stage 2 unlocked, got index %d", m.snap.CurrentStageIndex)
	}
	if !strings.Contains(m.renderLog(), "第 2 阶段已解锁") {
		t.Errorf("Unlock announcement missing from log")
	}

	m = typeLine(t, m, "/skip")
	if !strings.Contains(m.notice, "Not now") {
		t.Errorf("Expected skip to be refused in challenge mode, notice %q", m.notice)
	}

	m = typeLine(t, m, "/restart")
	if m.snap.Status != models.StatusIdle || len(m.snap.Transcript) != 0 {
		t.Errorf("Expected a fresh game after /restart, got %+v", m.snap)
	}
}

func TestTruthToggleAndBack(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.loadPuzzles()())
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if strings.Contains(m.renderState(), "TRUTH") {
		t.Errorf("Truth shown before it was asked for")
	}
	m = typeLine(t, m, "/truth")
	if !strings.Contains(m.renderState(), m.puzzle.Truth) {
		t.Errorf("Truth not shown after /truth")
	}

	m = typeLine(t, m, "/back")
	if m.state != stateList {
		t.Errorf("Expected list view after /back, got %d", m.state)
	}
}
