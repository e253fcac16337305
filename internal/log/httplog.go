package log

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

// AccessLog returns middleware that writes one structured line per request.
// Server errors are logged at error level, everything else at info.
func AccessLog(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, req)

			fields := []interface{}{
				"method", req.Method,
				"path", req.URL.Path,
				"status", m.Code,
				"duration_ms", m.Duration.Milliseconds(),
				"size", m.Written,
				"remote_addr", req.RemoteAddr,
				"user_agent", req.UserAgent(),
			}

			if m.Code >= http.StatusInternalServerError {
				logger.Errorw("http request", fields...)
				return
			}
			logger.Infow("http request", fields...)
		})
	}
}
