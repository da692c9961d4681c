// Package tmux is the Session Driver (spec.md §4.1, C1): a thin,
// best-effort abstraction over the `tmux` binary, the terminal multiplexer
// that hosts every worker and specialist agent's interactive process.
//
// Every operation shells out via os/exec, the same idiom used throughout
// the retrieval pack wherever Go code drives tmux directly (no ecosystem
// client library exists for tmux; it is a subprocess-and-text-protocol
// concern everywhere it appears).
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/eltmon/panopticon/pkg/perr"
)

const defaultTimeout = 5 * time.Second

// Driver runs tmux commands against a configurable binary (normally just
// "tmux", resolved via $PATH).
type Driver struct {
	Binary  string
	Timeout time.Duration
}

// New creates a Driver. binary defaults to "tmux" if empty.
func New(binary string) *Driver {
	if binary == "" {
		binary = "tmux"
	}
	return &Driver{Binary: binary, Timeout: defaultTimeout}
}

func (d *Driver) timeout() time.Duration {
	if d.Timeout <= 0 {
		return defaultTimeout
	}
	return d.Timeout
}

func (d *Driver) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, d.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return "", perr.NewSessionError(perr.SessionTimeout, strings.Join(args, " "), ctx.Err())
	}
	if err != nil {
		return stdout.String(), perr.NewSessionError(perr.SessionIO, strings.Join(args, " "),
			fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}
	return stdout.String(), nil
}

// Exists reports whether a session with this name is currently alive.
// Never returns an error for a missing session — that is the expected,
// non-exceptional "false" case (spec.md §4.1 contract).
func (d *Driver) Exists(ctx context.Context, name string) bool {
	_, err := d.run(ctx, "has-session", "-t", name)
	return err == nil
}

// CreateDetached starts a new detached session named `name`, rooted at
// cwd, immediately running command (as a single shell-interpreted
// string so the caller can pass flags/session-resume args inline).
func (d *Driver) CreateDetached(ctx context.Context, name, cwd, command string) error {
	if _, err := d.run(ctx, "new-session", "-d", "-s", name, "-c", cwd); err != nil {
		return err
	}
	if command == "" {
		return nil
	}
	if err := d.Send(ctx, name, command); err != nil {
		_ = d.Kill(ctx, name)
		return err
	}
	return d.SendEnter(ctx, name)
}

// Send types text into the session without pressing Enter. Callers that
// want a full "user turn" must follow with SendEnter — spec.md §4.1 is
// explicit that the two are not atomic and partial delivery must be
// tolerated.
func (d *Driver) Send(ctx context.Context, name, text string) error {
	_, err := d.run(ctx, "send-keys", "-t", name, "-l", text)
	return err
}

// SendEnter presses Enter in the session (completing a "user turn" when
// preceded by Send).
func (d *Driver) SendEnter(ctx context.Context, name string) error {
	_, err := d.run(ctx, "send-keys", "-t", name, "Enter")
	return err
}

// SendTab presses Tab, used by the Pending-Question Broker (C11) to move
// between answer fields.
func (d *Driver) SendTab(ctx context.Context, name string) error {
	_, err := d.run(ctx, "send-keys", "-t", name, "Tab")
	return err
}

// Capture returns the last `lines` of the session's pane, a point-in-time
// snapshot. Ordering is preserved; tmux may truncate mid-escape-sequence
// on the first captured line, which callers must tolerate (spec.md §4.1).
func (d *Driver) Capture(ctx context.Context, name string, lines int) (string, error) {
	if lines <= 0 {
		lines = 200
	}
	out, err := d.run(ctx, "capture-pane", "-t", name, "-p", "-S", "-"+strconv.Itoa(lines))
	if err != nil {
		return "", err
	}
	return out, nil
}

// Kill terminates a session. Killing a non-existent session is not an
// error (spec.md §4.1 best-effort contract).
func (d *Driver) Kill(ctx context.Context, name string) error {
	_, err := d.run(ctx, "kill-session", "-t", name)
	if serr, ok := err.(*perr.SessionError); ok && serr.Kind == perr.SessionIO {
		// tmux exits non-zero with "can't find session" for an absent
		// session; that is success from the caller's point of view.
		if strings.Contains(serr.Error(), "can't find session") {
			return nil
		}
	}
	return err
}

// List returns the names of all live tmux sessions. An empty tmux server
// (no sessions at all) is reported as an empty slice, not an error.
func (d *Driver) List(ctx context.Context) ([]string, error) {
	out, err := d.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if serr, ok := err.(*perr.SessionError); ok && strings.Contains(serr.Error(), "no server running") {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}
