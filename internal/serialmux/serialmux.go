// Serialmux provides an abstraction over a serial line stream with the
// ability for multiple clients to subscribe to the lines it carries and send
// commands back to the single device on the other end.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"tailscale.com/tsweb"

	"github.com/banshee-data/motion.report/internal/monitoring"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// SubscriberBuffer is the capacity of each subscriber channel. Lines are
// dropped for a subscriber whose buffer is full.
const SubscriberBuffer = 256

// maxLineBytes bounds a single inbound line. Odometry messages with full
// covariance matrices run to a few kilobytes.
const maxLineBytes = 1 << 20

// SerialMux fans the lines read from one port out to any number of
// subscribers. T is the concrete port type so tests can inspect it.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan string
	primary      map[string]*primarySub
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool

	// sendMu is held while Monitor blocks on a primary channel, so that
	// channel is never closed under a pending send.
	sendMu sync.Mutex

	lines   atomic.Uint64
	dropped atomic.Uint64
}

// SerialMuxInterface is the line source seen by the dispatch loop and the
// API. SerialMux, DisabledSerialMux and the replay mux all satisfy it.
type SerialMuxInterface interface {
	// Subscribe returns an id and a buffered channel that receives every
	// line read after the call. Lines are dropped while the channel is full.
	// The channel is closed by Unsubscribe or Close.
	Subscribe() (string, chan string)
	// SubscribePrimary is Subscribe without drops: Monitor waits for a
	// primary subscriber to take each line before reading the next one.
	SubscribePrimary() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes one newline-terminated line to the port.
	SendCommand(string) error
	// Monitor pumps lines to subscribers until EOF or ctx is done.
	Monitor(context.Context) error
	Close() error
	Stats() Stats

	// AttachAdminRoutes registers the /debug/ serial routes on mux. tsweb
	// only serves them to loopback and tailnet peers.
	AttachAdminRoutes(*http.ServeMux)
}

// Stats counts lines seen by Monitor.
type Stats struct {
	Lines       uint64 `json:"lines"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

// NewSerialMux creates a SerialMux instance reading from port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
		primary:     make(map[string]*primarySub),
	}
}

type primarySub struct {
	ch   chan string
	done chan struct{}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, SubscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closing {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

func (s *SerialMux[T]) SubscribePrimary() (string, chan string) {
	id := uuid.NewString()
	sub := &primarySub{ch: make(chan string, SubscriberBuffer), done: make(chan struct{})}
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closing {
		close(sub.ch)
		return id, sub.ch
	}
	s.primary[id] = sub
	return id, sub.ch
}

// Unsubscribe closes and forgets the channel registered under id.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
	sub, ok := s.primary[id]
	if ok {
		delete(s.primary, id)
		close(sub.done)
	}
	s.subscriberMu.Unlock()

	if ok {
		s.closePrimary(sub)
	}
}

// closePrimary closes sub's channel once no send to it is in flight.
// sub.done must already be closed.
func (s *SerialMux[T]) closePrimary(sub *primarySub) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	close(sub.ch)
}

// SendCommand writes command to the port, adding a trailing newline if
// missing. Concurrent callers are serialised.
func (s *SerialMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port and fans them out to subscribers until
// the port reaches EOF, a read fails, or ctx is cancelled. Blank lines are
// skipped.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs on its own goroutine so the loop below can
	// still observe cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !s.publish(ctx, line) {
				return nil
			}
		}
	}
}

// publish hands line to the primary subscribers, waiting for each to take
// it, and offers it to the others without blocking. It returns false once
// the mux is closing.
func (s *SerialMux[T]) publish(ctx context.Context, line string) bool {
	s.subscriberMu.Lock()
	if s.closing {
		s.subscriberMu.Unlock()
		return false
	}
	s.lines.Add(1)
	for id, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
			if s.dropped.Add(1)%100 == 1 {
				monitoring.Logf("serialmux: subscriber %s is full, dropping lines", id)
			}
		}
	}
	primary := make([]*primarySub, 0, len(s.primary))
	for _, sub := range s.primary {
		primary = append(primary, sub)
	}
	s.sendMu.Lock()
	s.subscriberMu.Unlock()
	defer s.sendMu.Unlock()

	for _, sub := range primary {
		select {
		case sub.ch <- line:
		case <-sub.done:
		case <-ctx.Done():
			return true
		}
	}
	return true
}

// Stats returns the current line counters.
func (s *SerialMux[T]) Stats() Stats {
	s.subscriberMu.Lock()
	n := len(s.subscribers) + len(s.primary)
	s.subscriberMu.Unlock()
	return Stats{Lines: s.lines.Load(), Dropped: s.dropped.Load(), Subscribers: n}
}

func (s *SerialMux[T]) Close() error {
	s.subscriberMu.Lock()
	if s.closing {
		s.subscriberMu.Unlock()
		return nil
	}
	s.closing = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	primary := make([]*primarySub, 0, len(s.primary))
	for id, sub := range s.primary {
		close(sub.done)
		delete(s.primary, id)
		primary = append(primary, sub)
	}
	s.subscriberMu.Unlock()

	for _, sub := range primary {
		s.closePrimary(sub)
	}
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}

// attachAdminRoutes registers the tail and command endpoints for any mux
// implementation.
func attachAdminRoutes(mux *http.ServeMux, s SerialMuxInterface) {
	debug := tsweb.Debugger(mux)

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to serial port", command))
	})

	debug.HandleFunc("serial-stats", "inbound line counters", func(w http.ResponseWriter, r *http.Request) {
		st := s.Stats()
		fmt.Fprintf(w, "lines %d\ndropped %d\nsubscribers %d\n", st.Lines, st.Dropped, st.Subscribers)
	})

	// Server-Sent Events stream of every inbound line.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
