package route

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"busboard/src-server/model"
	"busboard/src-server/utils"

	"github.com/google/uuid"
)

func Auth(muxer *http.ServeMux, as *utils.AppState) {
	muxer.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, "login.html", nil)
	})

	// check the credential pair, mint a session row, hand the secret back
	// as a cookie
	muxer.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		username := r.FormValue("username")
		password := r.FormValue("password")
		if username != as.Config.GetAdminUsername() || password != as.Config.GetAdminPassword() {
			renderPage(w, "login.html", map[string]any{
				"Error": "Invalid credentials",
			})
			return
		}

		newSessionSecret := uuid.NewString()
		startTimer := time.Now()
		if _, err := as.BunDB.
			NewInsert().
			Model(&model.Session{
				Secret:           newSessionSecret,
				CreatedAtUnixUTC: time.Now().UTC().Unix(),
				IpAddress: func() string {
					host, _, err := net.SplitHostPort(r.RemoteAddr)
					if err != nil {
						return r.RemoteAddr
					}
					return host
				}(),
				UserAgent: r.UserAgent(),
			}).
			Exec(r.Context()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Can't insert session model to DB"))
			slog.Error("can't insert session model to DB", "error", err)
			return
		}
		as.MetricChans.DatabaseWrite <- float64(time.Since(startTimer).Microseconds())

		http.SetCookie(w, &http.Cookie{
			Name:     SessionSecretCookieName,
			Value:    newSessionSecret,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	})

	muxer.HandleFunc("GET /logout", func(w http.ResponseWriter, r *http.Request) {
		if sessionCookie, err := r.Cookie(SessionSecretCookieName); err == nil {
			if _, err := as.BunDB.
				NewDelete().
				Model((*model.Session)(nil)).
				Where("secret = ?", sessionCookie.Value).
				Exec(r.Context()); err != nil {
				slog.Warn("can't delete session model in DB", "error", err)
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     SessionSecretCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}
