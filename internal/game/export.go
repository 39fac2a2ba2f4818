package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Exporter appends round results to a plain text file, one block per
// session. It remembers which sessions already got their header, so the
// header lands on the first exported round whatever its number.
type Exporter struct {
	File string

	mu      sync.Mutex
	started map[string]bool
}

func NewExporter(file string) *Exporter {
	return &Exporter{File: file, started: make(map[string]bool)}
}

// Export writes a decided round and, when gs is set, the closing game
// summary. A game summary for a session that never exported a round is
// skipped.
func (e *Exporter) Export(code string, rs *RoundSummary, gs *GameSummary, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	first := !e.started[code]
	if rs == nil && first {
		return nil
	}

	dir := filepath.Dir(e.File)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if _, err := os.Stat(e.File); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(e.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder

	if first {
		if fileExists {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("Prompt Party Results - Session %s\n", code))
		sb.WriteString(fmt.Sprintf("Started: %s\n", now.Format("2006-01-02 15:04:05")))
		sb.WriteString(strings.Repeat("=", 50) + "\n\n")
		sb.WriteString("Players:\n")
		for _, p := range rs.Players {
			sb.WriteString(fmt.Sprintf("- %s\n", p.Name))
		}
		sb.WriteString("\n")
	}

	if rs != nil {
		sb.WriteString(fmt.Sprintf("Round %d: \"%s\"\n", rs.Round, rs.Prompt.Text))
		sb.WriteString(strings.Repeat("-", 40) + "\n")
		how := "picked by the judge"
		if rs.Auto {
			how = "picked at random"
		}
		sb.WriteString(fmt.Sprintf("Winner: %s with \"%s\" (%s)\n", rs.WinnerName, rs.WinnerCard.Text, how))
		writeScores(&sb, "Scores after this round:", rs.Players)
		sb.WriteString("\n")
	}

	if gs != nil {
		if gs.Winner != nil {
			sb.WriteString(fmt.Sprintf("Game won by %s with %d points\n", gs.Winner.Name, gs.Winner.Points))
		}
		sb.WriteString(fmt.Sprintf("Game ended at %s (%s)\n", now.Format("2006-01-02 15:04:05"), gs.Reason))
		sb.WriteString(strings.Repeat("=", 50) + "\n")
	}

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	// a finished session's code may be handed out again
	if gs != nil {
		delete(e.started, code)
	} else {
		e.started[code] = true
	}
	return nil
}

func writeScores(sb *strings.Builder, title string, players []Standing) {
	scores := append([]Standing(nil), players...)
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Points > scores[j].Points })
	sb.WriteString(title + "\n")
	for _, s := range scores {
		sb.WriteString(fmt.Sprintf("- %s: %d points\n", s.Name, s.Points))
	}
}
