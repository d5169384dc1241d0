package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/matheus3301/recap/internal/history"
	"github.com/matheus3301/recap/internal/summarize"
)

// categorize maps a pipeline failure to an HTTP status and a
// human-readable message. Unknown failures collapse to a generic 500.
func categorize(err error) (int, string) {
	switch {
	case errors.Is(err, summarize.ErrAlreadyRunning):
		return http.StatusConflict, "a summarization run is already in progress"
	case errors.Is(err, summarize.ErrNoData):
		return http.StatusNotFound, "no recent unread messages to summarize"
	case errors.Is(err, summarize.ErrInvalidEndpoint):
		return http.StatusBadGateway, "summarization endpoint is not a valid URL"
	case errors.Is(err, summarize.ErrNoResponseBody):
		return http.StatusBadGateway, "summarization service returned an empty response"
	case errors.Is(err, summarize.ErrDecode):
		return http.StatusBadGateway, "summarization service returned undecodable data"
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, "summary not found"
	}

	var srv *summarize.ServerError
	if errors.As(err, &srv) {
		return http.StatusBadGateway, fmt.Sprintf("summarization service returned status %d", srv.Code)
	}

	var tr *summarize.TransportError
	if errors.As(err, &tr) {
		if summarize.Retryable(err) {
			return http.StatusBadGateway, "could not reach the summarization service"
		}
		return http.StatusBadGateway, "summarization request was interrupted"
	}

	return http.StatusInternalServerError, "summarization failed"
}
