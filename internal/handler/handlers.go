// Package handler serves the subset of the Hawkular Metrics and Alerts REST
// APIs used by the client, backed by a MemStorage.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	middlewareinternal "github.com/Schera-ole/hawkular-client-cli/internal/middleware"
	models "github.com/Schera-ole/hawkular-client-cli/internal/model"
	"github.com/Schera-ole/hawkular-client-cli/internal/repository"
)

// AuthConfig lists the credentials a server accepts. Empty fields disable the check.
type AuthConfig struct {
	Tenant   string
	Token    string
	Username string
	Password string
}

func Router(storage *repository.MemStorage, logger *zap.SugaredLogger, auth AuthConfig) chi.Router {
	router := chi.NewRouter()
	router.Use(middlewareinternal.LoggingMiddleware(logger))
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(15 * time.Second))
	router.Use(authMiddleware(auth))

	router.Route("/hawkular/metrics", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			StatusHandler(w, r, storage, logger)
		})
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			DefinitionsHandler(w, r, storage, logger)
		})
		r.Post("/{type}/raw", func(w http.ResponseWriter, r *http.Request) {
			WriteHandler(w, r, storage, logger)
		})
		r.Get("/{type}/{id}/raw", func(w http.ResponseWriter, r *http.Request) {
			RawHandler(w, r, storage, logger)
		})
		r.Get("/{type}/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
			StatsHandler(w, r, storage, logger)
		})
		r.Put("/{type}/{id}/tags", func(w http.ResponseWriter, r *http.Request) {
			TagsHandler(w, r, storage, logger)
		})
	})
	router.Get("/hawkular/alerts/triggers", func(w http.ResponseWriter, r *http.Request) {
		TriggersHandler(w, r, storage, logger)
	})
	return router
}

func authMiddleware(auth AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := r.Header.Get(middlewareinternal.TenantHeader)
			if tenant == "" || (auth.Tenant != "" && tenant != auth.Tenant) {
				http.Error(w, "missing or unknown tenant", http.StatusBadRequest)
				return
			}
			if auth.Token != "" && r.Header.Get("Authorization") != "Bearer "+auth.Token {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}
			if auth.Username != "" {
				user, pass, ok := r.BasicAuth()
				if !ok || user != auth.Username || pass != auth.Password {
					http.Error(w, "invalid basic auth credentials", http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func metricParams(w http.ResponseWriter, r *http.Request) (models.MetricType, string, bool) {
	typ, ok := models.MetricTypeFromPath(chi.URLParam(r, "type"))
	if !ok {
		http.Error(w, "Invalid metric type", http.StatusNotFound)
		return "", "", false
	}
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		http.Error(w, "Metric id not found", http.StatusNotFound)
		return "", "", false
	}
	return typ, id, true
}

func parseRange(r *http.Request) (models.Query, error) {
	var q models.Query
	values := r.URL.Query()
	for name, target := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		if raw := values.Get(name); raw != "" {
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return q, fmt.Errorf("%s should be milliseconds since the epoch", name)
			}
			*target = time.UnixMilli(ms)
		}
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("limit should be an integer")
		}
		q.Limit = limit
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("error encoding response: %v", err)
	}
}

func StatusHandler(w http.ResponseWriter, r *http.Request, storage *repository.MemStorage, logger *zap.SugaredLogger) {
	status, err := storage.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, logger, status)
}

func DefinitionsHandler(w http.ResponseWriter, r *http.Request, storage *repository.MemStorage, logger *zap.SugaredLogger) {
	typ, err := models.ParseMetricType(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tags := map[string]string{}
	if raw := r.URL.Query().Get("tags"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			name, value, ok := strings.Cut(part, ":")
			if !ok {
				http.Error(w, "tags should be name:value pairs", http.StatusBadRequest)
				return
			}
			tags[name] = value
		}
	}
	definitions, err := storage.QueryMetricDefinitions(r.Context(), typ, tags)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(definitions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, logger, definitions)
}

func WriteHandler(w http.ResponseWriter, r *http.Request, storage *repository.MemStorage, logger *zap.SugaredLogger) {
	typ, ok := models.MetricTypeFromPath(chi.URLParam(r, "type"))
	if !ok {
		http.Error(w, "Invalid metric type", http.StatusNotFound)
		return
	}
	var metrics []models.MetricsDTO
	if err := json.NewDecoder(r.Body).Decode(&metrics); err != nil {
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}
	for _, m := range metrics {
		for _, p := range m.Data {
			if err := validValue(typ, p.Value); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if err := storage.Write(typ, m.ID, m.Data...); err != nil {
			logger.Info(err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// validValue checks a decoded JSON value against the metric type.
func validValue(typ models.MetricType, v any) error {
	switch typ {
	case models.Gauge, models.Counter:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("%s value should be a number, got %v", typ, v)
		}
	case models.String, models.Availability:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%s value should be a string, got %v", typ, v)
		}
	}
	return nil
}

func RawHandler(w http.ResponseWriter, r *http.Request, storage *repository.MemStorage, logger *zap.SugaredLogger) {
	typ, id, ok := metricParams(w, r)
	if !ok {
		return
	}
	q, err := parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	points, err := storage.QueryMetric(r.Context(), typ, id, q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(points) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, logger, points)
}

func StatsHandler(w http.ResponseWriter, r *http.Request, storage *repository.MemStorage, logger *zap.SugaredLogger) {
	typ, id, ok := metricParams(w, r)
	if !ok {
		return
	}
	q, err := parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q.BucketDuration, err = time.ParseDuration(r.URL.Query().Get("bucketDuration"))
	if err != nil {
		http.Error(w, "bucketDuration should be a duration such as 60s", http.StatusBadRequest)
		return
	}
	buckets, err := storage.QueryMetricStats(r.Context(), typ, id, q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, logger, buckets)
}

func TagsHandler(w http.ResponseWriter, r *http.Request, storage *repository.MemStorage, logger *zap.SugaredLogger) {
	typ, id, ok := metricParams(w, r)
	if !ok {
		return
	}
	var tags map[string]string
	if err := json.NewDecoder(r.Body).Decode(&tags); err != nil {
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := storage.UpdateMetricTags(r.Context(), typ, id, tags); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func TriggersHandler(w http.ResponseWriter, r *http.Request, storage *repository.MemStorage, logger *zap.SugaredLogger) {
	triggers, err := storage.ListTriggers(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, logger, triggers)
}
