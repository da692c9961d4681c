package question

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eltmon/panopticon/pkg/tmux"
	"github.com/eltmon/panopticon/pkg/transcript"
)

func fakeTmuxDriver(t *testing.T, logPath string) *tmux.Driver {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tmux script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "tmux")
	script := "#!/bin/sh\necho \"$@\" >> " + logPath + "\nexit 0\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return tmux.New(path)
}

func newTestBroker(t *testing.T) (*Broker, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "calls.log")
	driver := fakeTmuxDriver(t, logPath)
	b := New(transcript.New(""), driver)
	b.Delay = 0
	return b, logPath
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	var lines []string
	for _, l := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// P6 (spec.md §8): a matched label sends "<n><Tab>...<Enter>" — here a
// single question so no Tab, just the index keystroke then Enter.
func TestAnswerMatchedLabelSendsOptionIndex(t *testing.T) {
	b, logPath := newTestBroker(t)
	questions := []transcript.Question{
		{Prompt: "Pick one", Options: []transcript.QuestionOption{
			{Label: "Option A"}, {Label: "Option B"}, {Label: "Option C"},
		}},
	}

	require.NoError(t, b.Answer(context.Background(), "agent-pan-100", questions, []string{"Option B"}))

	calls := readCalls(t, logPath)
	require.Len(t, calls, 2)
	assert.Equal(t, "send-keys -t agent-pan-100 -l 2", calls[0])
	assert.Equal(t, "send-keys -t agent-pan-100 Enter", calls[1])
}

// P6: an unmatched label sends "<k_custom><free-text><Enter>".
func TestAnswerUnmatchedLabelSendsCustomIndexThenText(t *testing.T) {
	b, logPath := newTestBroker(t)
	questions := []transcript.Question{
		{Prompt: "Pick one", Options: []transcript.QuestionOption{
			{Label: "Option A"}, {Label: "Option B"},
		}},
	}

	require.NoError(t, b.Answer(context.Background(), "agent-pan-100", questions, []string{"something else entirely"}))

	calls := readCalls(t, logPath)
	require.Len(t, calls, 3)
	assert.Equal(t, "send-keys -t agent-pan-100 -l 3", calls[0])
	assert.Equal(t, "send-keys -t agent-pan-100 -l something else entirely", calls[1])
	assert.Equal(t, "send-keys -t agent-pan-100 Enter", calls[2])
}

func TestAnswerMultiQuestionSendsTabBetween(t *testing.T) {
	b, logPath := newTestBroker(t)
	questions := []transcript.Question{
		{Options: []transcript.QuestionOption{{Label: "Yes"}, {Label: "No"}}},
		{Options: []transcript.QuestionOption{{Label: "Red"}, {Label: "Blue"}}},
	}

	require.NoError(t, b.Answer(context.Background(), "agent-pan-100", questions, []string{"No", "Blue"}))

	calls := readCalls(t, logPath)
	require.Len(t, calls, 4)
	assert.Equal(t, "send-keys -t agent-pan-100 -l 2", calls[0]) // "No"
	assert.Equal(t, "send-keys -t agent-pan-100 Tab", calls[1])
	assert.Equal(t, "send-keys -t agent-pan-100 -l 2", calls[2]) // "Blue"
	assert.Equal(t, "send-keys -t agent-pan-100 Enter", calls[3])
}

func TestAnswerCountMismatchErrors(t *testing.T) {
	b, _ := newTestBroker(t)
	questions := []transcript.Question{{Options: []transcript.QuestionOption{{Label: "Yes"}}}}

	err := b.Answer(context.Background(), "agent-pan-100", questions, []string{"Yes", "extra"})
	require.Error(t, err)
	var mismatch *ErrAnswerCountMismatch
	assert.ErrorAs(t, err, &mismatch)
}
