package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fiffu/vacancywatch/config"
	"github.com/fiffu/vacancywatch/lib"
	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/fiffu/vacancywatch/lib/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Sugar().Errorw("Admin API stopped", "err", err)
				}
			}()
			log.Sugar().Infof("Admin API listening on %s", addr)
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("vacancywatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Route("/users", func(r chi.Router) {
			r.Post("/", ctrl.onboardUser)
			r.Get("/{user_id}", ctrl.viewUser)
			r.Get("/{user_id}/sightings", ctrl.listSightings)
			r.Put("/{user_id}/filter", ctrl.setFilter)
			r.Put("/{user_id}/notification-time", ctrl.setNotificationTime)
			r.Post("/{user_id}/tracking", ctrl.startTracking)
			r.Delete("/{user_id}/tracking", ctrl.stopTracking)
		})
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

// fail maps service errors onto status codes.
func (ctrl *controller) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		ctrl.reject(w, http.StatusNotFound, err)
	case errors.Is(err, lib.ErrInvalidInput):
		ctrl.reject(w, http.StatusBadRequest, err)
	case errors.Is(err, lib.ErrFilterRequired):
		ctrl.reject(w, http.StatusConflict, err)
	default:
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		ctrl.reject(w, http.StatusInternalServerError, err)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func (ctrl *controller) onboardUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := formInt(r, "id")
	if err != nil || id == nil {
		ctrl.reject(w, http.StatusBadRequest, errors.New("id is required"))
		return
	}
	chatID, err := formInt(r, "chat_id")
	if err != nil {
		ctrl.reject(w, http.StatusBadRequest, err)
		return
	}

	req := lib.OnboardRequest{
		ID:         *id,
		Username:   r.FormValue("username"),
		FirstName:  r.FormValue("first_name"),
		LastName:   r.FormValue("last_name"),
		Platform:   r.FormValue("platform"),
		Identifier: r.FormValue("identifier"),
	}
	if chatID != nil {
		req.ChatID = *chatID
	}

	user, err := ctrl.svc.OnboardUser(ctx, req)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, UserView{}.From(user))
}

func (ctrl *controller) viewUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctrl.userID(w, r)
	if !ok {
		return
	}

	status, err := ctrl.svc.Status(r.Context(), userID)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, StatusView{}.From(status))
}

func (ctrl *controller) listSightings(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctrl.userID(w, r)
	if !ok {
		return
	}

	sightings, err := ctrl.svc.ListSightings(r.Context(), userID)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[models.Sighting, SightingView](sightings))
}

func (ctrl *controller) setFilter(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctrl.userID(w, r)
	if !ok {
		return
	}

	filter := models.Filter{Keyword: r.FormValue("keyword")}
	region, err := formInt(r, "region_code")
	if err != nil {
		ctrl.reject(w, http.StatusBadRequest, err)
		return
	}
	filter.RegionCode = region
	for name, dst := range map[string]**int{
		"minimum_experience": &filter.MinimumExperience,
		"minimum_salary":     &filter.MinimumSalary,
	} {
		v, err := formInt(r, name)
		if err != nil {
			ctrl.reject(w, http.StatusBadRequest, err)
			return
		}
		if v != nil {
			n := int(*v)
			*dst = &n
		}
	}

	user, err := ctrl.svc.SetFilter(r.Context(), userID, filter)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, UserView{}.From(user))
}

func (ctrl *controller) setNotificationTime(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctrl.userID(w, r)
	if !ok {
		return
	}

	user, err := ctrl.svc.SetNotificationTime(r.Context(), userID, r.FormValue("time"), r.FormValue("offset"))
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, UserView{}.From(user))
}

func (ctrl *controller) startTracking(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctrl.userID(w, r)
	if !ok {
		return
	}

	user, err := ctrl.svc.StartTracking(r.Context(), userID)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusAccepted, UserView{}.From(user))
}

func (ctrl *controller) stopTracking(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctrl.userID(w, r)
	if !ok {
		return
	}

	user, err := ctrl.svc.StopTracking(r.Context(), userID)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, UserView{}.From(user))
}

func (ctrl *controller) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		ctrl.reject(w, http.StatusBadRequest, errors.New("user_id must be an integer"))
		return 0, false
	}
	return id, true
}

// formInt reads an optional integer form value. Absent values yield nil.
func formInt(r *http.Request, name string) (*int64, error) {
	s := r.FormValue(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &v, nil
}
