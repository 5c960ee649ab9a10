package logger

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Logger provides leveled logging for the pipeline jobs and the API service.
type Logger struct {
	info *log.Logger
	warn *log.Logger
	err  *log.Logger
}

// New creates a Logger writing to stdout/stderr.
func New() *Logger {
	return &Logger{
		info: log.New(os.Stdout, "", 0),
		warn: log.New(os.Stdout, "", 0),
		err:  log.New(os.Stderr, "", 0),
	}
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Printf(fmt.Sprintf("[%s] INFO  %s", timestamp(), format), args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Printf(fmt.Sprintf("[%s] WARN  %s", timestamp(), format), args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Printf(fmt.Sprintf("[%s] ERROR %s", timestamp(), format), args...)
}

// Middleware logs one line per HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
