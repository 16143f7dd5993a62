package route

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"busboard/src-server/model"
	"busboard/src-server/utils"
)

// Inline-edit endpoints behind the admin page. Both take a JSON body naming
// one allow-listed column and answer with a fixed {success, error?} shape;
// a rejected field or malformed value is a structured failure, not an HTTP
// error.
func FieldAPI(muxer *http.ServeMux, as *utils.AppState) {
	type UpdateBusFieldReqBody struct {
		BusID int64  `json:"bus_id"`
		Field string `json:"field"`
		Value string `json:"value"`
	}

	type UpdateRunFieldReqBody struct {
		RunID int64  `json:"run_id"`
		Field string `json:"field"`
		Value string `json:"value"`
	}

	type UpdateFieldRespBody struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}

	respond := func(w http.ResponseWriter, body UpdateFieldRespBody) {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("can't encode field update response", "error", err)
		}
	}

	muxer.HandleFunc("POST /update_bus_field", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var reqBody UpdateBusFieldReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			respond(w, UpdateFieldRespBody{Error: "Invalid request body"})
			return
		}

		startTimer := time.Now()
		if err := model.UpdateBusField(r.Context(), as.BunDB, reqBody.BusID, reqBody.Field, reqBody.Value); err != nil {
			if errors.Is(err, model.ErrFieldNotAllowed) {
				respond(w, UpdateFieldRespBody{Error: "Invalid field"})
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
			respond(w, UpdateFieldRespBody{Error: "Can't update bus field"})
			slog.Error("can't update bus field", "bus_id", reqBody.BusID, "error", err)
			return
		}
		as.MetricChans.DatabaseWrite <- float64(time.Since(startTimer).Microseconds())

		respond(w, UpdateFieldRespBody{Success: true})
	}))

	muxer.HandleFunc("POST /update_run_field", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var reqBody UpdateRunFieldReqBody
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			respond(w, UpdateFieldRespBody{Error: "Invalid request body"})
			return
		}

		startTimer := time.Now()
		if err := model.UpdateRunField(r.Context(), as.BunDB, reqBody.RunID, reqBody.Field, reqBody.Value); err != nil {
			switch {
			case errors.Is(err, model.ErrFieldNotAllowed):
				respond(w, UpdateFieldRespBody{Error: "Invalid field"})
				return
			case errors.Is(err, model.ErrBadDateFormat):
				respond(w, UpdateFieldRespBody{Error: "Invalid date format"})
				return
			case errors.Is(err, model.ErrBadTimeFormat):
				respond(w, UpdateFieldRespBody{Error: "Invalid time format"})
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
			respond(w, UpdateFieldRespBody{Error: "Can't update run field"})
			slog.Error("can't update run field", "run_id", reqBody.RunID, "error", err)
			return
		}
		as.MetricChans.DatabaseWrite <- float64(time.Since(startTimer).Microseconds())

		respond(w, UpdateFieldRespBody{Success: true})
	}))
}
