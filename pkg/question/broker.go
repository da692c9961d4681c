// Package question is the Pending-Question Broker (C11, spec.md §4.11): it
// detects unanswered structured multi-choice questions a worker agent has
// emitted into its transcript, and maps a human's free-form answers back
// onto the keystroke sequence that drives the agent's terminal prompt.
//
// Grounded on pkg/transcript's tool-use scan (shared "question-for-user"
// recognition) and pkg/tmux's Send/SendEnter/SendTab primitives; the
// pacing delay between keystrokes mirrors the other_examples sidecar
// worktree-agent.go's explicit small sleep between tmux keystroke batches.
package question

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/eltmon/panopticon/pkg/tmux"
	"github.com/eltmon/panopticon/pkg/transcript"
)

// KeystrokeDelay paces successive keystrokes sent to the same pane so a
// slow terminal's echo doesn't interleave with the next send (spec.md
// §4.11: "100 ms pacing delay between keystrokes is recommended").
const KeystrokeDelay = 100 * time.Millisecond

// Broker detects pending questions and delivers answers as tmux keystrokes.
type Broker struct {
	Transcript *transcript.Reader
	Tmux       *tmux.Driver
	Delay      time.Duration
}

// New constructs a Broker with Delay set to KeystrokeDelay. A zero or
// negative Delay also paces at KeystrokeDelay.
func New(reader *transcript.Reader, tmuxDriver *tmux.Driver) *Broker {
	return &Broker{Transcript: reader, Tmux: tmuxDriver, Delay: KeystrokeDelay}
}

func (b *Broker) delay() time.Duration {
	if b.Delay <= 0 {
		return KeystrokeDelay
	}
	return b.Delay
}

// Pending returns the unanswered questions in agentDir's active transcript.
func (b *Broker) Pending(agentDir string) ([]transcript.PendingQuestion, error) {
	return b.Transcript.FindPendingQuestions(agentDir)
}

// Answer sends the given free-text answers to the agent's session as
// keystrokes, one per pending question in order, matching each answer
// against its question's option labels.
//
// For a matched label: send the option's 1-based index, then (unless it
// is the final answer) a Tab to move to the next question. For an
// unmatched label: send the synthetic "custom" index (len(options)+1),
// type the free-text answer, then (unless final) a Tab. After the last
// answer, send Enter. This is the literal sequence P6 and spec.md
// scenario 6 describe.
func (b *Broker) Answer(ctx context.Context, sessionName string, questions []transcript.Question, answers []string) error {
	n := len(questions)
	if len(answers) != n {
		return &ErrAnswerCountMismatch{Expected: n, Got: len(answers)}
	}

	for i := 0; i < n; i++ {
		q := questions[i]
		answer := answers[i]

		idx := matchOption(q.Options, answer)
		if idx > 0 {
			if err := b.sendKeystroke(ctx, sessionName, strconv.Itoa(idx)); err != nil {
				return err
			}
		} else {
			custom := len(q.Options) + 1
			if err := b.sendKeystroke(ctx, sessionName, strconv.Itoa(custom)); err != nil {
				return err
			}
			if err := b.sendKeystroke(ctx, sessionName, answer); err != nil {
				return err
			}
		}

		if i < n-1 {
			time.Sleep(b.delay())
			if err := b.Tmux.SendTab(ctx, sessionName); err != nil {
				return err
			}
		}
	}

	time.Sleep(b.delay())
	return b.Tmux.SendEnter(ctx, sessionName)
}

func (b *Broker) sendKeystroke(ctx context.Context, sessionName, text string) error {
	time.Sleep(b.delay())
	return b.Tmux.Send(ctx, sessionName, text)
}

// matchOption returns the 1-based index of the option whose label equals
// answer, or 0 if no option matches.
func matchOption(options []transcript.QuestionOption, answer string) int {
	for i, opt := range options {
		if opt.Label == answer {
			return i + 1
		}
	}
	return 0
}

// ErrAnswerCountMismatch flags an Answer call whose number of answers
// differs from the number of questions.
type ErrAnswerCountMismatch struct {
	Expected, Got int
}

func (e *ErrAnswerCountMismatch) Error() string {
	return fmt.Sprintf("question: expected %d answers, got %d", e.Expected, e.Got)
}
