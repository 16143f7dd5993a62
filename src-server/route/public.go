package route

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"busboard/src-server/model"
	"busboard/src-server/utils"

	"github.com/skip2/go-qrcode"
)

func MapSearchURL(destination string) string {
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(destination)
}

func Public(muxer *http.ServeMux, as *utils.AppState) {
	// public bus roster, numerically sorted
	muxer.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		startTimer := time.Now()
		buses, err := model.ListBuses(r.Context(), as.BunDB)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Can't list buses"))
			slog.Error("can't list buses", "error", err)
			return
		}
		as.MetricChans.DatabaseRead <- float64(time.Since(startTimer).Microseconds())

		renderPage(w, "index.html", map[string]any{
			"Buses": buses,
		})
	})

	// public run schedule, chronologically sorted
	muxer.HandleFunc("GET /runs", func(w http.ResponseWriter, r *http.Request) {
		startTimer := time.Now()
		runs, err := model.ListRuns(r.Context(), as.BunDB)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Can't list runs"))
			slog.Error("can't list runs", "error", err)
			return
		}
		as.MetricChans.DatabaseRead <- float64(time.Since(startTimer).Microseconds())

		renderPage(w, "runs.html", map[string]any{
			"Runs": runs,
		})
	})

	// QR code pointing a phone at the run's destination on a map
	muxer.HandleFunc("GET /run_qr/{run_id}", func(w http.ResponseWriter, r *http.Request) {
		runID, err := strconv.ParseInt(r.PathValue("run_id"), 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		runModel, err := model.GetRun(r.Context(), as.BunDB, runID)
		switch {
		case errors.Is(err, model.ErrRunNotFound):
			http.NotFound(w, r)
			return
		case err != nil:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Can't get run"))
			slog.Error("can't get run", "run_id", runID, "error", err)
			return
		}

		startTimer := time.Now()
		png, err := qrcode.Encode(MapSearchURL(runModel.Destination), qrcode.Medium, 256)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Can't encode QR code"))
			slog.Error("can't encode QR code", "run_id", runID, "error", err)
			return
		}
		as.MetricChans.QrEncode <- float64(time.Since(startTimer).Microseconds())

		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})
}
