package metrics

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/nci/gskywcs/utils"
)

type Logger interface {
	Log(info *MetricsInfo)
}

// StdoutLogger writes each record as a JSON line through the server log.
type StdoutLogger struct {
	log zerolog.Logger
}

func NewStdoutLogger(log zerolog.Logger) *StdoutLogger {
	return &StdoutLogger{log: log}
}

func (l *StdoutLogger) Log(info *MetricsInfo) {
	infoStr, err := info.ToJSON()
	if err != nil {
		l.log.Error().Err(err).Msg("StdoutLogger: encoding metrics")
		return
	}
	l.log.Info().RawJSON("metrics", []byte(infoStr[:len(infoStr)-1])).Msg("request")
}

const defaultQueueSize = 2000
const defaultLogWriters = 2
const defaultMaxLogFileSizeMB = 1024
const defaultMaxLogFiles = 10

// FileLogger queues records and writes them from a fixed set of writer
// goroutines, each with its own rotating log file.
type FileLogger struct {
	MetricsQueue chan *MetricsInfo
	LogDir       string
	MaxSizeMB    int
	MaxLogFiles  int

	log     zerolog.Logger
	writers []io.WriteCloser
	done    chan struct{}
}

func NewFileLogger(logDir string, maxSizeMB int, maxLogFiles int, log zerolog.Logger) *FileLogger {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxLogFileSizeMB
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue: make(chan *MetricsInfo, defaultQueueSize),
		LogDir:       logDir,
		MaxSizeMB:    maxSizeMB,
		MaxLogFiles:  maxLogFiles,
		log:          log,
		done:         make(chan struct{}),
	}

	for i := 0; i < defaultLogWriters; i++ {
		w := utils.RotatingWriter(logDir, fmt.Sprintf("log%d", i), maxSizeMB, maxLogFiles, 0)
		logger.writers = append(logger.writers, w)
	}
	for i, w := range logger.writers {
		go logger.startLogWriter(i, w)
	}

	return logger
}

// Log queues info. It never blocks: records are dropped when the queue
// is full.
func (l *FileLogger) Log(info *MetricsInfo) {
	select {
	case l.MetricsQueue <- info:
	default:
		l.log.Warn().Msg("FileLogger: queue full, dropping metrics record")
	}
}

// Close stops the writers once the queue is drained.
func (l *FileLogger) Close() {
	close(l.MetricsQueue)
	for range l.writers {
		<-l.done
	}
}

func (l *FileLogger) startLogWriter(idx int, w io.WriteCloser) {
	defer func() {
		w.Close()
		l.done <- struct{}{}
	}()

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			l.log.Error().Err(err).Int("writer", idx).Msg("FileLogger: encoding metrics")
			continue
		}
		if _, err := io.WriteString(w, infoStr); err != nil {
			l.log.Error().Err(err).Int("writer", idx).Msg("FileLogger: write error")
		}
	}
}
