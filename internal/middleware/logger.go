package middleware

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// Logger returns a Fiber middleware that only logs slow or failed requests,
// which keeps card-edit and dashboard polling traffic out of the logs.
func Logger() fiber.Handler {
	return logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		Output: &filteredWriter{
			dest:          os.Stdout,
			slowThreshold: 500 * time.Millisecond,
			statusFloor:   400,
		},
	})
}

// filteredWriter discards log lines for fast, successful requests. It parses
// status and latency back out of the formatted line:
//
//	"15:04:05 | 200 | 1.23ms | GET /path\n"
type filteredWriter struct {
	dest          io.Writer
	slowThreshold time.Duration
	statusFloor   int
}

func (w *filteredWriter) Write(p []byte) (int, error) {
	parts := strings.Split(string(p), " | ")
	if len(parts) < 3 {
		return w.dest.Write(p) // unparseable, write anyway
	}

	status, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	if status >= w.statusFloor {
		return w.dest.Write(p)
	}

	if dur, err := time.ParseDuration(strings.TrimSpace(parts[2])); err == nil && dur >= w.slowThreshold {
		return w.dest.Write(p)
	}

	return len(p), nil
}
