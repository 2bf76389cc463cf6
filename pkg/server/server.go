package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"careerprep/pkg/config"
	"careerprep/pkg/handlers"
)

func NewHTTPServer(config *config.Config, handler *handlers.Handler, gatherer prometheus.Gatherer, logger *logrus.Logger) *http.Server {
	return &http.Server{
		Addr:         ":" + config.Port,
		Handler:      NewRouter(handler, gatherer, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func NewRouter(handler *handlers.Handler, gatherer prometheus.Gatherer, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()

	// Processing
	router.HandleFunc("/process", handler.Process).Methods("POST")

	// Messaging
	router.HandleFunc("/responses", handler.SubmitResponse).Methods("POST")
	router.HandleFunc("/responses/{id}", handler.GetResponse).Methods("GET")
	router.HandleFunc("/messages", handler.SaveMessage).Methods("POST")
	router.HandleFunc("/sessions/{id}", handler.SaveSession).Methods("PUT")
	router.HandleFunc("/sessions/{id}/messages", handler.SessionMessages).Methods("GET")
	router.HandleFunc("/profiles/{id}", handler.SaveProfile).Methods("PUT")

	// Deadlines
	router.HandleFunc("/deadlines/classify", handler.ClassifyDeadline).Methods("GET")
	router.HandleFunc("/deadlines/calendar", handler.CalendarLink).Methods("GET")
	router.HandleFunc("/deadlines/ics", handler.DownloadICS).Methods("GET")
	router.HandleFunc("/deadlines/business", handler.BusinessDeadline).Methods("GET")

	router.HandleFunc("/health", handler.Health).Methods("GET")
	router.HandleFunc("/status", handler.Status).Methods("GET")

	// Metrics endpoint
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// Add logging middleware
	router.Use(loggingMiddleware(logger))

	return router
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Debug("HTTP request processed")
		})
	}
}
