package handler

import (
	"net/http"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// AccessLog logs one line per request.
func AccessLog(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
				"identity": callerID(r),
			}).Info("http request")
		})
	}
}

// Wrap applies CORS for the browser frontend, the access log and panic
// recovery around the router.
func Wrap(router http.Handler, logger *logrus.Logger, allowedOrigins []string) http.Handler {
	cors := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(allowedOrigins),
		gorillaHandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", identityHeader, requestIDHeader}),
	)
	recovery := gorillaHandlers.RecoveryHandler(
		gorillaHandlers.RecoveryLogger(logger),
		gorillaHandlers.PrintRecoveryStack(false),
	)
	return recovery(cors(AccessLog(logger)(router)))
}
