// Package transcript is the Transcript Reader (spec.md §4.3, C3): locates
// an agent's append-only conversation log and extracts token usage and
// unanswered structured questions from it. Reads are stateless and
// tolerate the file being rewritten concurrently by the agent process;
// this package never mutates a transcript.
package transcript

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/eltmon/panopticon/pkg/perr"
)

// Reader locates and parses transcripts under a workspace's
// transcript directory.
type Reader struct {
	// GlobPattern selects candidate transcript files within a workspace
	// directory, e.g. "*.jsonl".
	GlobPattern string
}

// New creates a Reader matching files with the given glob pattern
// (defaults to "*.jsonl").
func New(globPattern string) *Reader {
	if globPattern == "" {
		globPattern = "*.jsonl"
	}
	return &Reader{GlobPattern: globPattern}
}

// candidates lists transcript files in dir, newest-modified last.
func (r *Reader) candidates(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, r.GlobPattern))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	type withMtime struct {
		path  string
		mtime int64
	}
	withTimes := make([]withMtime, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue // vanished between Glob and Stat; tolerate
		}
		withTimes = append(withTimes, withMtime{m, info.ModTime().UnixNano()})
	}
	sort.Slice(withTimes, func(i, j int) bool { return withTimes[i].mtime < withTimes[j].mtime })
	out := make([]string, len(withTimes))
	for i, w := range withTimes {
		out[i] = w.path
	}
	return out, nil
}

// ActiveTranscript returns the path of the candidate file in dir with the
// greatest modification time (spec.md §4.3). Returns
// perr.ErrTranscriptUnavailable if dir has no candidates.
func (r *Reader) ActiveTranscript(dir string) (string, error) {
	all, err := r.candidates(dir)
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "", perr.ErrTranscriptUnavailable
	}
	return all[len(all)-1], nil
}

// readLines parses every well-formed line of path, silently skipping
// malformed or truncated ones (spec.md §4.3, B3).
func readLines(path string) ([]entryLine, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []entryLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e entryLine
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		lines = append(lines, e)
	}
	return lines, nil
}

// CollectUsage sums token usage across every transcript file found in dir,
// not just the active one (spec.md §4.3). If dir has no transcripts at
// all, returns a zero Usage and no error — degraded, not fatal.
func (r *Reader) CollectUsage(dir string) (Usage, error) {
	files, err := r.candidates(dir)
	if err != nil {
		return Usage{}, err
	}

	var out Usage
	for _, path := range files {
		lines, err := readLines(path)
		if err != nil {
			continue
		}
		for _, e := range lines {
			if e.Message == nil {
				continue
			}
			if out.Model == "" && e.Message.Model != "" {
				out.Model = e.Message.Model
			}
			if u := e.Message.Usage; u != nil {
				out.InputTokens += u.InputTokens
				out.OutputTokens += u.OutputTokens
				out.CacheRead += u.CacheReadTokens
				out.CacheWrite += u.CacheCreationTokens
			}
		}
	}
	return out, nil
}

// FindPendingQuestions scans the active transcript in dir for
// "question-for-user" tool-uses lacking a matching tool-result id
// (spec.md §4.3).
func (r *Reader) FindPendingQuestions(dir string) ([]PendingQuestion, error) {
	active, err := r.ActiveTranscript(dir)
	if err != nil {
		return nil, err
	}
	lines, err := readLines(active)
	if err != nil {
		return nil, err
	}

	type pending struct {
		ts        entryLine
		questions []Question
	}
	byToolID := make(map[string]pending)
	answeredIDs := make(map[string]bool)

	for _, e := range lines {
		if e.Message == nil {
			continue
		}
		for _, block := range e.Message.Content {
			switch block.Type {
			case "tool_use":
				if block.Name != questionToolName {
					continue
				}
				qs := decodeQuestions(block.Input)
				byToolID[block.ID] = pending{ts: e, questions: qs}
			case "tool_result":
				if block.ToolUseID != "" {
					answeredIDs[block.ToolUseID] = true
				}
			}
		}
	}

	var result []PendingQuestion
	for toolID, p := range byToolID {
		if answeredIDs[toolID] {
			continue
		}
		result = append(result, PendingQuestion{
			ToolID:    toolID,
			Timestamp: p.ts.Timestamp,
			Questions: p.questions,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

// decodeQuestions re-marshals a loosely-typed tool-use input back through
// JSON to recover its Question payload, tolerating inputs that don't match
// the expected shape (malformed lines are skipped, not fatal).
func decodeQuestions(input any) []Question {
	if input == nil {
		return nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil
	}
	var payload struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload.Questions
}
