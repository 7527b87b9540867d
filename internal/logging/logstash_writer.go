package logging

import (
	"errors"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogstashWriter ships log lines to a Logstash TCP input from a background
// goroutine. Write never blocks: lines are queued and dropped when the queue
// is full or Logstash is unreachable.
type LogstashWriter struct {
	addr          string
	dialTimeout   time.Duration
	writeTimeout  time.Duration
	retryInterval time.Duration
	queueSize     int

	lines     chan []byte
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64

	conn      net.Conn
	nextRetry time.Time
}

type Option func(*LogstashWriter)

// WithDialTimeout overrides the TCP dial timeout. Defaults to 2 seconds.
func WithDialTimeout(d time.Duration) Option {
	return func(w *LogstashWriter) { w.dialTimeout = d }
}

// WithWriteTimeout overrides the TCP write timeout. Defaults to 1 second.
func WithWriteTimeout(d time.Duration) Option {
	return func(w *LogstashWriter) { w.writeTimeout = d }
}

// WithRetryInterval sets the pause after a failed connect or write. Defaults to 5 seconds.
func WithRetryInterval(d time.Duration) Option {
	return func(w *LogstashWriter) { w.retryInterval = d }
}

// WithQueueSize bounds the number of lines waiting to be shipped. Defaults to 1024.
func WithQueueSize(n int) Option {
	return func(w *LogstashWriter) { w.queueSize = n }
}

func NewLogstashWriter(addr string, opts ...Option) (*LogstashWriter, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("logstash: empty address")
	}

	w := &LogstashWriter{
		addr:          addr,
		dialTimeout:   2 * time.Second,
		writeTimeout:  time.Second,
		retryInterval: 5 * time.Second,
		queueSize:     1024,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.queueSize <= 0 {
		w.queueSize = 1
	}

	w.lines = make(chan []byte, w.queueSize)
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	go w.run()
	return w, nil
}

func (w *LogstashWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	data := make([]byte, len(p), len(p)+1)
	copy(data, p)
	if data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	select {
	case <-w.quit:
		return 0, io.ErrClosedPipe
	default:
	}

	select {
	case w.lines <- data:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped reports how many lines were discarded.
func (w *LogstashWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Close flushes queued lines on a best-effort basis and closes the connection.
func (w *LogstashWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.quit)
	})
	<-w.done
	return nil
}

func (w *LogstashWriter) run() {
	defer close(w.done)
	defer w.closeConn()

	for {
		select {
		case line := <-w.lines:
			w.ship(line)
		case <-w.quit:
			for {
				select {
				case line := <-w.lines:
					w.ship(line)
				default:
					return
				}
			}
		}
	}
}

func (w *LogstashWriter) ship(line []byte) {
	if err := w.ensureConn(); err != nil {
		w.dropped.Add(1)
		return
	}
	if w.writeTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	if _, err := w.conn.Write(line); err != nil {
		w.dropped.Add(1)
		w.closeConn()
		w.scheduleRetry()
	}
}

func (w *LogstashWriter) ensureConn() error {
	if w.conn != nil {
		return nil
	}
	if !w.nextRetry.IsZero() && time.Now().Before(w.nextRetry) {
		return errRetryCooldown
	}

	conn, err := net.DialTimeout("tcp", w.addr, w.dialTimeout)
	if err != nil {
		w.scheduleRetry()
		return err
	}
	w.conn = conn
	w.nextRetry = time.Time{}
	return nil
}

func (w *LogstashWriter) closeConn() {
	if w.conn == nil {
		return
	}
	_ = w.conn.Close()
	w.conn = nil
}

func (w *LogstashWriter) scheduleRetry() {
	if w.retryInterval <= 0 {
		w.nextRetry = time.Time{}
		return
	}
	w.nextRetry = time.Now().Add(w.retryInterval)
}

var errRetryCooldown = errors.New("logstash: retry cooldown in effect")

// Setup points the standard logger at stderr and, when addr is set, mirrors
// it to Logstash. The returned closer flushes the Logstash writer.
func Setup(addr string) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.LUTC)
	if strings.TrimSpace(addr) == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}

	w, err := NewLogstashWriter(addr)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	return w, nil
}
