package route

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"busboard/src-server/model"
	"busboard/src-server/utils"
)

func Admin(muxer *http.ServeMux, as *utils.AppState) {
	muxer.HandleFunc("GET /admin", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		buses, err := model.ListBuses(r.Context(), as.BunDB)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Can't list buses"))
			slog.Error("can't list buses", "error", err)
			return
		}
		runs, err := model.ListRuns(r.Context(), as.BunDB)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Can't list runs"))
			slog.Error("can't list runs", "error", err)
			return
		}

		renderPage(w, "admin.html", map[string]any{
			"Buses": buses,
			"Runs":  runs,
		})
	}))

	// the management form posts everything here with an "action" discriminator
	muxer.HandleFunc("POST /admin", AuthMiddleware(as, func(w http.ResponseWriter, r *http.Request) {
		formID := func(name string) int64 {
			id, err := strconv.ParseInt(r.FormValue(name), 10, 64)
			if err != nil {
				return 0
			}
			return id
		}

		startTimer := time.Now()
		var err error
		dispatched := true
		switch r.FormValue("action") {
		case "add":
			busModel := model.Bus{
				BusNumber: r.FormValue("bus_number"),
				Driver:    r.FormValue("driver"),
				Status:    r.FormValue("status"),
				Notes:     r.FormValue("notes"),
			}
			err = busModel.Insert(r.Context(), as.BunDB)
		case "update":
			err = model.UpdateBus(r.Context(), as.BunDB, formID("bus_id"),
				r.FormValue("driver"), r.FormValue("status"), r.FormValue("notes"))
		case "delete":
			err = model.DeleteBus(r.Context(), as.BunDB, formID("bus_id"))
		case "add_run":
			runModel := model.Run{
				RunDate:     r.FormValue("run_date"),
				RunTime:     r.FormValue("run_time"),
				ReturnTime:  r.FormValue("return_time"),
				GroupName:   r.FormValue("group_name"),
				Destination: r.FormValue("destination"),
				Driver:      r.FormValue("driver"),
				SubDriver:   r.FormValue("sub_driver"),
				BusNumber:   r.FormValue("bus_number"),
			}
			err = runModel.Insert(r.Context(), as.BunDB)
		case "delete_run":
			err = model.DeleteRun(r.Context(), as.BunDB, formID("run_id"))
		default:
			// unknown actions fall through to the redirect untouched
			dispatched = false
		}
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Can't apply admin action"))
			slog.Error("can't apply admin action", "action", r.FormValue("action"), "error", err)
			return
		}
		if dispatched {
			as.MetricChans.DatabaseWrite <- float64(time.Since(startTimer).Microseconds())
		}

		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	}))
}
