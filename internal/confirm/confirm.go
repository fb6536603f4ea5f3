// Package confirm asks the operator to acknowledge operations that touch
// running processes and issues the token those operations require.
package confirm

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zeebo/blake3"
	"golang.org/x/term"

	"github.com/hbctl/hbctl/internal/apperrors"
	"github.com/hbctl/hbctl/internal/cluster"
)

// Action is a confirmable lifecycle command.
type Action string

const (
	ActionStart         Action = "start"
	ActionStop          Action = "stop"
	ActionRestart       Action = "restart"
	ActionRollingUpdate Action = "rolling-update"
	ActionCleanup       Action = "cleanup"
	ActionBootstrap     Action = "bootstrap"
)

// Destructive reports whether the action stops, removes or restarts processes.
func (a Action) Destructive() bool {
	switch a {
	case ActionStop, ActionRestart, ActionRollingUpdate, ActionCleanup, ActionBootstrap:
		return true
	}
	return false
}

// typesName reports whether the operator must type the cluster name.
func (a Action) typesName() bool {
	return a == ActionCleanup || a == ActionBootstrap
}

// Token proves an action was confirmed for a cluster in this invocation.
type Token struct {
	Action  Action
	Cluster string
	Value   string
}

// Zero reports whether t was never issued.
func (t Token) Zero() bool {
	return t.Value == ""
}

// For reports whether t authorises action on clusterName.
func (t Token) For(action Action, clusterName string) bool {
	return !t.Zero() && t.Action == action && t.Cluster == clusterName
}

func newToken(action Action, clusterName string) (Token, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return Token{}, fmt.Errorf("generating token nonce: %w", err)
	}
	h := blake3.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00", action, clusterName, time.Now().UnixNano())
	_, _ = h.Write(nonce)
	return Token{
		Action:  action,
		Cluster: clusterName,
		Value:   hex.EncodeToString(h.Sum(nil)[:16]),
	}, nil
}

// Prompter asks one question.
type Prompter interface {
	Prompt(ctx context.Context, req Request) (bool, error)
}

// TeaPrompter runs the bubbletea prompt on the given terminal streams.
type TeaPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p TeaPrompter) Prompt(ctx context.Context, req Request) (bool, error) {
	prog := tea.NewProgram(NewModel(req),
		tea.WithContext(ctx),
		tea.WithInput(p.In),
		tea.WithOutput(p.Out),
	)
	final, err := prog.Run()
	if err != nil {
		return false, fmt.Errorf("running confirmation prompt: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return false, fmt.Errorf("unexpected prompt model %T", final)
	}
	return m.Confirmed(), nil
}

// Gate is the confirmation step of one command invocation.
type Gate struct {
	Cluster string
	// AssumeYes bypasses every prompt (--yes, --skip-confirm).
	AssumeYes   bool
	Interactive bool
	Prompter    Prompter
}

// NewGate creates a gate prompting on the process terminal.
func NewGate(clusterName string, assumeYes bool) *Gate {
	return &Gate{
		Cluster:     clusterName,
		AssumeYes:   assumeYes,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
		Prompter:    TeaPrompter{In: os.Stdin, Out: os.Stderr},
	}
}

// Confirm asks for action and returns a token bound to it. Without a
// terminal the action is declined unless AssumeYes is set.
func (g *Gate) Confirm(ctx context.Context, action Action, detail string) (Token, error) {
	req := Request{Action: action, Cluster: g.Cluster, Detail: detail}
	if action.typesName() {
		req.Expect = g.Cluster
	}
	if err := g.ask(ctx, req); err != nil {
		return Token{}, err
	}
	return newToken(action, g.Cluster)
}

// ConfirmHost is the per-host checkpoint of a rolling update.
func (g *Gate) ConfirmHost(ctx context.Context, task cluster.Task) error {
	return g.ask(ctx, Request{
		Action:  ActionRollingUpdate,
		Cluster: g.Cluster,
		Detail:  "next: " + task.String(),
	})
}

func (g *Gate) ask(ctx context.Context, req Request) error {
	if g.AssumeYes {
		return nil
	}
	if !g.Interactive || g.Prompter == nil {
		return apperrors.Declined(string(req.Action), "stdin is not a terminal; pass --yes to run unattended")
	}
	ok, err := g.Prompter.Prompt(ctx, req)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Declined(string(req.Action), "operator declined")
	}
	return nil
}
