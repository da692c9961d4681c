package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/eltmon/panopticon/pkg/perr"
	"github.com/eltmon/panopticon/pkg/question"
)

// mapError translates the engine's typed error taxonomy (spec.md §7) into
// an HTTP response. Anything unrecognized is logged and surfaces as a
// generic 500 rather than leaking an internal Go error string.
func mapError(err error) *echo.HTTPError {
	var notFound *perr.NotFoundError
	if errors.As(err, &notFound) {
		return echo.NewHTTPError(http.StatusNotFound, notFound.Error())
	}

	var alreadyRunning *perr.AlreadyRunningError
	if errors.As(err, &alreadyRunning) {
		return echo.NewHTTPError(http.StatusConflict, alreadyRunning.Error())
	}

	var lockBusy *perr.LockBusyError
	if errors.As(err, &lockBusy) {
		// 423-equivalent (spec.md §7: "LockBusy — C8 held"), via
		// net/http's StatusLocked constant.
		return echo.NewHTTPError(http.StatusLocked, lockBusy.Error())
	}

	var alreadyReviewed *perr.AlreadyReviewedNeedsActionError
	if errors.As(err, &alreadyReviewed) {
		return echo.NewHTTPError(http.StatusConflict, alreadyReviewed.Error())
	}

	var notReady *perr.NotReadyForMergeError
	if errors.As(err, &notReady) {
		return echo.NewHTTPError(http.StatusConflict, notReady.Error())
	}

	var answerMismatch *question.ErrAnswerCountMismatch
	if errors.As(err, &answerMismatch) {
		return echo.NewHTTPError(http.StatusBadRequest, answerMismatch.Error())
	}

	if errors.Is(err, perr.ErrNotCancellable) {
		return echo.NewHTTPError(http.StatusConflict, perr.ErrNotCancellable.Error())
	}

	slog.Error("api: unmapped error", "err", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
