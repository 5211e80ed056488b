package manager

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// logLineWriter splits child output into lines and logs each at debug level.
type logLineWriter struct {
	mu     sync.Mutex
	logger zerolog.Logger
	stream string
	buf    bytes.Buffer
}

func newLogLineWriter(logger zerolog.Logger, stream string) *logLineWriter {
	return &logLineWriter{logger: logger, stream: stream}
}

func (w *logLineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(w.buf.Next(i+1), "\r\n")
		if len(line) > 0 {
			w.logger.Debug().Str("stream", w.stream).Msg(string(line))
		}
	}
	// Cap a runaway partial line.
	if w.buf.Len() > 64*1024 {
		w.logger.Debug().Str("stream", w.stream).Msg(w.buf.String())
		w.buf.Reset()
	}
	return len(p), nil
}
