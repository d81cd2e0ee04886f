package strategy

import (
	"errors"
	"testing"
)

func TestExecute_HaltsOnFirstSuccess(t *testing.T) {
	var ran []string
	mk := func(label string, n int, err error) Attempt {
		return Attempt{Label: label, Run: func() (int, error) {
			ran = append(ran, label)
			return n, err
		}}
	}

	winner, outcomes := Execute([]Attempt{
		mk("digits", 0, nil),
		mk("punctuated", 0, errors.New("timeout")),
		mk("with-symbol", 3, nil),
		mk("symbol-only", 5, nil),
		mk("no-category", 1, nil),
	})

	if winner != "with-symbol" {
		t.Fatalf("winner = %q, want with-symbol", winner)
	}
	if len(ran) != 3 {
		t.Fatalf("ran %d attempts, want 3 (no attempts after first success)", len(ran))
	}
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	wantStatus := []string{"empty", "error", "success"}
	for i, o := range outcomes {
		if o.Status() != wantStatus[i] {
			t.Errorf("outcome %d status = %q, want %q", i, o.Status(), wantStatus[i])
		}
	}
}

func TestExecute_ExhaustedChainReturnsEmptyWinner(t *testing.T) {
	winner, outcomes := Execute([]Attempt{
		{Label: "a", Run: func() (int, error) { return 0, nil }},
		{Label: "b", Run: func() (int, error) { return 0, nil }},
	})
	if winner != "" {
		t.Fatalf("winner = %q, want empty", winner)
	}
	got := Labels(outcomes)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("labels = %v, want [a b]", got)
	}
}

func TestExecute_ErrorWithResultsDoesNotWin(t *testing.T) {
	winner, _ := Execute([]Attempt{
		{Label: "partial", Run: func() (int, error) { return 2, errors.New("truncated") }},
		{Label: "clean", Run: func() (int, error) { return 1, nil }},
	})
	if winner != "clean" {
		t.Fatalf("winner = %q, want clean", winner)
	}
}
