package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

// RequestIDHeader is set on the response before handlers run; error bodies
// repeat it so clients can quote it in support requests.
const RequestIDHeader = "X-Request-Id"

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.Envelope{Data: data})
}

// WritePage writes a cursor page; an empty cursor marks the last page.
func WritePage(w http.ResponseWriter, data any, nextCursor string) {
	writeJSON(w, http.StatusOK, types.PageEnvelope{Data: data, NextCursor: nextCursor, HasMore: nextCursor != ""})
}

// WriteError renders err through its code policy and logs the full chain,
// Postgres diagnostics included, under request.error.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	view := pkgerrors.PublicView(err)

	if logg != nil {
		fields := pkgerrors.Diagnose(err).Fields()
		if typed := pkgerrors.As(err); typed != nil {
			if details, ok := typed.Details().(map[string]any); ok && details["step"] != nil {
				fields["step"] = details["step"]
			}
		}
		if view.Status >= http.StatusInternalServerError {
			logg.Error(logg.WithFields(ctx, fields), "request.error", err)
		} else {
			logg.Warn(logg.WithFields(ctx, fields), "request.rejected")
		}
	}

	writeJSON(w, view.Status, types.ErrorEnvelope{
		Error: types.ErrorBody{
			Code:      string(view.Code),
			Message:   view.Message,
			Details:   view.Details,
			RequestID: w.Header().Get(RequestIDHeader),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
