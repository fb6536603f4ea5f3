package confirm

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
)

type fakePrompter struct {
	answer   bool
	err      error
	requests []Request
}

func (f *fakePrompter) Prompt(_ context.Context, req Request) (bool, error) {
	f.requests = append(f.requests, req)
	return f.answer, f.err
}

func typeInto(m Model, s string) Model {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func pressEnter(m Model) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model)
}

func TestModelYes(t *testing.T) {
	for _, answer := range []string{"y", "YES", "yes"} {
		m := pressEnter(typeInto(NewModel(Request{Action: ActionStop, Cluster: "c"}), answer))
		if !m.Done() || !m.Confirmed() {
			t.Errorf("%q should confirm", answer)
		}
	}
}

func TestModelNo(t *testing.T) {
	for _, answer := range []string{"", "n", "yep"} {
		m := pressEnter(typeInto(NewModel(Request{Action: ActionStop, Cluster: "c"}), answer))
		if !m.Done() || m.Confirmed() {
			t.Errorf("%q should not confirm", answer)
		}
	}
}

func TestModelRequiresClusterName(t *testing.T) {
	req := Request{Action: ActionCleanup, Cluster: "hbase-prod", Expect: "hbase-prod"}

	m := pressEnter(typeInto(NewModel(req), "yes"))
	if m.Confirmed() {
		t.Error("yes must not confirm a cleanup")
	}

	m = pressEnter(typeInto(NewModel(req), "hbase-prod"))
	if !m.Confirmed() {
		t.Error("typing the cluster name should confirm")
	}
}

func TestModelEscCancels(t *testing.T) {
	next, _ := NewModel(Request{Action: ActionStop}).Update(tea.KeyMsg{Type: tea.KeyEsc})
	m := next.(Model)
	if !m.Cancelled() || m.Confirmed() {
		t.Error("esc should cancel without confirming")
	}
}

func TestModelView(t *testing.T) {
	view := NewModel(Request{Action: ActionCleanup, Cluster: "hbase-prod", Expect: "hbase-prod", Detail: "all jobs"}).View()
	for _, want := range []string{"cleanup hbase-prod", "all jobs", "Type the cluster name"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestGateAssumeYes(t *testing.T) {
	p := &fakePrompter{}
	g := &Gate{Cluster: "c", AssumeYes: true, Prompter: p}

	tok, err := g.Confirm(context.Background(), ActionCleanup, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tok.For(ActionCleanup, "c") || tok.For(ActionBootstrap, "c") || tok.For(ActionCleanup, "other") {
		t.Errorf("token bound to the wrong action or cluster: %+v", tok)
	}
	if len(p.requests) != 0 {
		t.Error("assume-yes must not prompt")
	}
}

func TestGateNonInteractiveDeclines(t *testing.T) {
	g := &Gate{Cluster: "c", Prompter: &fakePrompter{answer: true}}
	_, err := g.Confirm(context.Background(), ActionStop, "")
	if !errors.Is(err, apperrors.ErrConfirmationDeclined) {
		t.Fatalf("expected confirmation declined, got %v", err)
	}
}

func TestGatePrompts(t *testing.T) {
	p := &fakePrompter{answer: true}
	g := &Gate{Cluster: "c", Interactive: true, Prompter: p}

	if _, err := g.Confirm(context.Background(), ActionBootstrap, "3 hosts"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Confirm(context.Background(), ActionRestart, ""); err != nil {
		t.Fatal(err)
	}
	if p.requests[0].Expect != "c" {
		t.Error("bootstrap should require the cluster name")
	}
	if p.requests[1].Expect != "" {
		t.Error("restart should accept y/yes")
	}

	p.answer = false
	if err := g.ConfirmHost(context.Background(), cluster.Task{Role: "regionserver", ID: 2, Host: "h3"}); !errors.Is(err, apperrors.ErrConfirmationDeclined) {
		t.Errorf("expected declined host checkpoint, got %v", err)
	}
	if !strings.Contains(p.requests[2].Detail, "regionserver/2@h3") {
		t.Errorf("host checkpoint should name the task: %q", p.requests[2].Detail)
	}
}

func TestTokensAreUnique(t *testing.T) {
	g := &Gate{Cluster: "c", AssumeYes: true}
	a, _ := g.Confirm(context.Background(), ActionCleanup, "")
	b, _ := g.Confirm(context.Background(), ActionCleanup, "")
	if a.Value == b.Value {
		t.Error("two confirmations should yield distinct tokens")
	}
	if len(a.Value) != 32 {
		t.Errorf("token length = %d", len(a.Value))
	}
}
