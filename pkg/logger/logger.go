package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RouteStats aggregates successful requests for one route between flushes
type RouteStats struct {
	Count      int           `json:"count"`
	TotalTime  time.Duration `json:"total_time"`
	MinLatency time.Duration `json:"min_latency"`
	MaxLatency time.Duration `json:"max_latency"`
	AvgLatency time.Duration `json:"avg_latency"`
}

// Options controls logger construction
type Options struct {
	Level  string
	Format string // "json" or "text"
	Output io.Writer
	// BatchSize is how many successful requests are folded into one summary line.
	BatchSize int
}

// BatchLogger wraps logrus.Logger and folds 2xx request logs into periodic
// summaries so polling dashboards do not flood the output
type BatchLogger struct {
	*logrus.Logger
	routes     map[string]*RouteStats
	batchCount int
	batchSize  int
	mutex      sync.Mutex
}

// New creates a logger. LOG_LEVEL overrides opts.Level when set.
func New(opts Options) *BatchLogger {
	log := logrus.New()

	if strings.EqualFold(opts.Format, "text") {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "time",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		})
	}

	if opts.Output != nil {
		log.SetOutput(opts.Output)
	} else {
		log.SetOutput(os.Stdout)
	}

	level := opts.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	log.SetLevel(ParseLevel(level))

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &BatchLogger{
		Logger:    log,
		routes:    make(map[string]*RouteStats),
		batchSize: batchSize,
	}
}

// ParseLevel maps a level name to a logrus level, defaulting to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// LogRequest logs a request. 2xx responses are batched; everything else is
// logged immediately.
func (bl *BatchLogger) LogRequest(method, route string, statusCode int, latency time.Duration, fields logrus.Fields) {
	if statusCode >= 200 && statusCode < 300 {
		bl.batchSuccess(method, route, latency)
		return
	}

	entry := bl.WithFields(fields).WithFields(logrus.Fields{
		"method":  method,
		"route":   route,
		"status":  statusCode,
		"latency": latency.String(),
	})
	if statusCode >= 500 {
		entry.Error("Request failed")
	} else if statusCode >= 400 {
		entry.Warn("Request rejected")
	} else {
		entry.Info("Request completed")
	}
}

func (bl *BatchLogger) batchSuccess(method, route string, latency time.Duration) {
	bl.mutex.Lock()
	defer bl.mutex.Unlock()

	key := method + " " + route
	stats, ok := bl.routes[key]
	if !ok {
		stats = &RouteStats{MinLatency: latency, MaxLatency: latency}
		bl.routes[key] = stats
	}

	stats.Count++
	stats.TotalTime += latency
	if latency < stats.MinLatency {
		stats.MinLatency = latency
	}
	if latency > stats.MaxLatency {
		stats.MaxLatency = latency
	}
	stats.AvgLatency = stats.TotalTime / time.Duration(stats.Count)

	bl.batchCount++
	if bl.batchCount >= bl.batchSize {
		bl.flushLocked()
	}
}

func (bl *BatchLogger) flushLocked() {
	if bl.batchCount == 0 {
		return
	}

	bl.WithFields(logrus.Fields{
		"batch_summary":  true,
		"total_requests": bl.batchCount,
		"routes":         bl.routes,
	}).Info("Request batch summary")

	bl.routes = make(map[string]*RouteStats)
	bl.batchCount = 0
}

// FlushPending forces a flush of any pending batch data
func (bl *BatchLogger) FlushPending() {
	bl.mutex.Lock()
	defer bl.mutex.Unlock()
	bl.flushLocked()
}
