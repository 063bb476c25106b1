package logging

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/sirupsen/logrus"
)

// Middleware attaches a fresh LogData to every request and writes one log line
// per request with the method, path, status, size and duration.
func Middleware(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logData := NewLogData(log)
			req = req.WithContext(NewContext(req.Context(), logData))

			metrics := httpsnoop.CaptureMetrics(next, w, req)

			entry := logData.Log().WithFields(logrus.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     metrics.Code,
				"bytes":      metrics.Written,
				"durationMs": metrics.Duration.Milliseconds(),
			})
			switch {
			case metrics.Code >= http.StatusInternalServerError:
				entry.Error("HttpServer.Request")
			case metrics.Code >= http.StatusBadRequest:
				entry.Warn("HttpServer.Request")
			default:
				entry.Info("HttpServer.Request")
			}
		})
	}
}

// LoggingWrapper adapts a handler that reports failures as errors. The error
// is logged with the request's LogData; writing the response stays the
// handler's job.
func LoggingWrapper(
	loggingName string,
	log *logrus.Logger,
	handler func(http.ResponseWriter, *http.Request, *LogData) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		logData := GetLogData(req.Context())
		if logData == nil {
			logData = NewLogData(log)
		}
		log.Debugf("Handler.%v.Start", loggingName)

		endTimer := logData.AddTiming("handlerMs")
		err := handler(w, req, logData)
		endTimer()
		if err != nil {
			logData.Log().WithError(err).Errorf("Handler.%v.Error", loggingName)
			return
		}

		logData.Log().Debugf("Handler.%v.Complete", loggingName)
	}
}
