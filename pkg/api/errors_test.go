package api

import (
	"fmt"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/eltmon/panopticon/pkg/perr"
	"github.com/eltmon/panopticon/pkg/question"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "not found maps to 404",
			err:        perr.NewNotFound("agent", "agent-pan-1"),
			expectCode: http.StatusNotFound,
			expectMsg:  "agent not found",
		},
		{
			name:       "already running maps to 409",
			err:        fmt.Errorf("wrapped: %w", perr.NewAlreadyRunning("review-agent")),
			expectCode: http.StatusConflict,
			expectMsg:  "already running",
		},
		{
			name:       "lock busy maps to 423",
			err:        &perr.LockBusyError{HeldBy: "merge-agent"},
			expectCode: http.StatusLocked,
			expectMsg:  "lock busy",
		},
		{
			name:       "already reviewed needs action maps to 409",
			err:        &perr.AlreadyReviewedNeedsActionError{IssueID: "PAN-1", Notes: "fix tests"},
			expectCode: http.StatusConflict,
			expectMsg:  "already reviewed",
		},
		{
			name:       "not ready for merge maps to 409",
			err:        &perr.NotReadyForMergeError{IssueID: "PAN-1"},
			expectCode: http.StatusConflict,
			expectMsg:  "not ready for merge",
		},
		{
			name:       "answer count mismatch maps to 400",
			err:        &question.ErrAnswerCountMismatch{Expected: 3, Got: 1},
			expectCode: http.StatusBadRequest,
			expectMsg:  "expected 3 answers",
		},
		{
			name:       "not cancellable maps to 409",
			err:        fmt.Errorf("wrapped: %w", perr.ErrNotCancellable),
			expectCode: http.StatusConflict,
			expectMsg:  "not cancellable",
		},
		{
			name:       "unknown error maps to 500",
			err:        fmt.Errorf("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapError(tt.err)
			assert.IsType(t, &echo.HTTPError{}, he)
			assert.Equal(t, tt.expectCode, he.Code)
			assert.Contains(t, he.Error(), tt.expectMsg)
		})
	}
}
