// Package handlers is the JSON HTTP API over the services.
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/songdecks/internal/accounts"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/catalog"
	"github.com/jason-s-yu/songdecks/internal/game"
	"github.com/jason-s-yu/songdecks/internal/lists"
	"github.com/jason-s-yu/songdecks/internal/middleware"
	"github.com/jason-s-yu/songdecks/internal/realtime"
	"github.com/jason-s-yu/songdecks/internal/workbench"
	"github.com/sirupsen/logrus"
)

// Services are the backends the API routes to.
type Services struct {
	Accounts  *accounts.Service
	Catalog   *catalog.Service
	Lists     *lists.Engine
	Games     *game.Engine
	Workbench *workbench.Service
	Hub       *realtime.Hub
	Sessions  *auth.Sessions
}

type Options struct {
	LoginRatePerMin int
	// OriginPatterns are the hosts allowed to open game WebSockets.
	OriginPatterns  []string
	SecureCookies   bool
}

type API struct {
	svc    Services
	opts   Options
	logger logrus.FieldLogger
}

func NewAPI(svc Services, opts Options, logger logrus.FieldLogger) *API {
	return &API{svc: svc, opts: opts, logger: logger.WithField("component", "http")}
}

// Routes is the full route table behind request logging and authentication.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	a.accountRoutes(mux)
	a.listRoutes(mux)
	a.gameRoutes(mux)
	a.catalogRoutes(mux)
	a.workbenchRoutes(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		a.writeJSON(w, http.StatusOK, envelope{Success: true, Response: "ok"})
	})

	var h http.Handler = mux
	h = middleware.Authenticate(a.svc.Sessions, a.svc.Accounts, a.logger)(h)
	h = middleware.LogMiddleware(a.logger)(h)
	return h
}
