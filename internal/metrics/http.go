package metrics

import (
	"net/http"
	"time"
)

// statusWriter はレスポンスのステータスコードを捕捉するResponseWriterラッパー。
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// NewHTTPMiddleware は全リクエストのステータスコードとレイテンシを
// 記録するミドルウェアを返す。collectorがnilの場合は素通しする。
func NewHTTPMiddleware(collector MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if collector == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(sw, r)

			collector.RecordHTTPStatus(sw.status)
			collector.RecordRequestLatency(time.Since(start))
		})
	}
}
