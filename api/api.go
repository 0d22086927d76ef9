package api

import (
	"context"
	"net/http"

	"github.com/courselab/marketplace/api/middleware"
	"github.com/courselab/marketplace/api/web"
	"github.com/courselab/marketplace/config"
	"github.com/courselab/marketplace/core/cart"
	"github.com/courselab/marketplace/core/course"
	"github.com/courselab/marketplace/core/ledger"
	"github.com/courselab/marketplace/core/purchase"
	"github.com/courselab/marketplace/core/review"
	"github.com/courselab/marketplace/core/user"
	"github.com/courselab/marketplace/rate"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Limiter    *rate.Limiter
	Checkout   config.Checkout
	Reviews    config.Reviews
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.Limiter != nil {
		a.mw = append(a.mw, middleware.RateLimit(cfg.Limiter))
	}

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	a.Handle(http.MethodGet, "/courses/owned", purchase.HandleListOwned(cfg.DB))
	a.Handle(http.MethodGet, "/courses/{course_id}/reviews", review.HandleListByCourse(cfg.DB))
	a.Handle(http.MethodPost, "/courses/{course_id}/reviews", review.HandleCreate(cfg.DB, cfg.Reviews))
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB))

	a.Handle(http.MethodGet, "/users/{id}", user.HandleShow(cfg.DB))

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB))
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(cfg.DB))
	a.Handle(http.MethodPut, "/cart/items", cart.HandleCreateItem(cfg.DB))
	a.Handle(http.MethodDelete, "/cart/items/{course_id}", cart.HandleDeleteItem(cfg.DB))

	a.Handle(http.MethodPost, "/orders/checkout", purchase.HandleCheckout(cfg.DB, cfg.Checkout))

	a.Handle(http.MethodGet, "/wallet", ledger.HandleShow(cfg.DB))
	a.Handle(http.MethodPost, "/wallet/topup", ledger.HandleTopUp(cfg.DB))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
