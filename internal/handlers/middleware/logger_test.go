package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type logCall struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	calls []logCall
}

func (l *recordingLogger) Info(msg string, v ...any) {
	l.calls = append(l.calls, logCall{level: "info", msg: msg, args: v})
}

func (l *recordingLogger) Error(msg string, v ...any) {
	l.calls = append(l.calls, logCall{level: "error", msg: msg, args: v})
}

func TestLoggerMiddleware(t *testing.T) {
	t.Run("log request", func(t *testing.T) {
		logger := &recordingLogger{}

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, err := w.Write([]byte("hi"))
			require.NoError(t, err, "should write response")
		})

		middleware := LoggerMiddleware(logger)
		srv := httptest.NewServer(middleware(h))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusTeapot, resp.StatusCode, "should return status Teapot. Resp: %s", string(body))
		require.Equal(t, "hi", string(body), "should return 'hi' in response")

		require.Len(t, logger.calls, 1, "logger should be called once")
		call := logger.calls[0]
		require.Equal(t, "info", call.level)
		require.Equal(t, "got HTTP request", call.msg, "logger should log 'got HTTP request'")
		args := call.args
		require.Len(t, args, 10, "logger should log 10 fields")
		require.Equal(t, "method", args[0])
		require.Equal(t, "GET", args[1])
		require.Equal(t, "uri", args[2])
		require.Equal(t, "/test", args[3])
		require.Equal(t, "duration", args[4])
		require.NotEmpty(t, args[5], "duration should not be empty")
		require.Equal(t, "status", args[6])
		require.Equal(t, http.StatusTeapot, args[7])
		require.Equal(t, "size", args[8])
		require.Equal(t, 2, args[9], "size should be 2 (length of 'hi')")
	})

	t.Run("server errors logged as errors", func(t *testing.T) {
		logger := &recordingLogger{}

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		w := httptest.NewRecorder()
		LoggerMiddleware(logger)(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		require.Len(t, logger.calls, 1)
		require.Equal(t, "error", logger.calls[0].level)
		require.Equal(t, http.StatusInternalServerError, logger.calls[0].args[7])
	})

	t.Run("access token in query not logged", func(t *testing.T) {
		logger := &recordingLogger{}
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		const token = "eyJhbGciOiJIUzI1NiJ9.c2VjcmV0.c2ln"

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/ws?token="+token+"&v=2", nil)
		LoggerMiddleware(logger)(h).ServeHTTP(w, r)

		require.Len(t, logger.calls, 1)
		for _, arg := range logger.calls[0].args {
			require.NotContains(t, fmt.Sprint(arg), token)
		}
		require.Equal(t, "/api/ws?token=REDACTED&v=2", logger.calls[0].args[3])
	})
}
