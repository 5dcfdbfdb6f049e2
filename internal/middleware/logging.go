package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// FeedCacheHeader はフィードキャッシュの参照結果を返すレスポンスヘッダー。
// リクエストログにはfeed_cacheとして記録する。
const FeedCacheHeader = "X-Feed-Cache"

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、request_id、user_id（認証済みの場合）、
// pageとfeed_cache（フィード取得の場合）を含む。
// RequestIDMiddlewareの内側に配置する。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}

			if page := r.URL.Query().Get("page"); page != "" {
				args = append(args, slog.String("page", page))
			}
			if cacheStatus := rec.Header().Get(FeedCacheHeader); cacheStatus != "" {
				args = append(args, slog.String("feed_cache", cacheStatus))
			}

			if info := requestInfoFromContext(r.Context()); info != nil {
				args = append(args, slog.String("request_id", info.requestID))
				// 認証ミドルウェアが内側で設定したユーザーID
				if info.userID > 0 {
					args = append(args, slog.Int64("user_id", info.userID))
				}
			} else if userID, err := UserIDFromContext(r.Context()); err == nil {
				args = append(args, slog.Int64("user_id", userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
