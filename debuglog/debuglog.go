package debuglog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Message is a single logged line
type Message struct {
	Timestamp time.Time
	Component string
	Message   string
	TrackID   string
}

// String renders the message the way it appears on the console
func (m Message) String() string {
	return fmt.Sprintf("[%s][%s] %s", m.Timestamp.Format("15:04:05.000"), m.Component, m.Message)
}

type writeTask struct {
	file    *os.File
	content string
}

// Logger provides unified debug message handling for console, per-track
// files and the terminal overlay
type Logger struct {
	out     io.Writer
	verbose bool

	// Per-track files, only in debug mode
	enabled    bool
	baseDir    string
	trackFiles map[string]*os.File
	writeQueue chan writeTask
	workerDone sync.WaitGroup

	mu         sync.Mutex
	history    []Message
	maxHistory int
	closed     bool
}

// Options configures a Logger
type Options struct {
	Output     io.Writer // Console output, defaults to stdout
	Verbose    bool      // Emit Verbose messages
	Debug      bool      // Write per-track files under Dir
	Dir        string    // Directory for per-track files
	MaxHistory int       // Messages kept for the terminal overlay
}

// New creates a unified debug logger
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 50
	}
	enabled := opts.Debug
	if enabled {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			fmt.Fprintf(opts.Output, "[DEBUG_LOGGER] Failed to create debug directory: %v\n", err)
			enabled = false
		}
	}

	l := &Logger{
		out:        opts.Output,
		verbose:    opts.Verbose,
		enabled:    enabled,
		baseDir:    opts.Dir,
		trackFiles: make(map[string]*os.File),
		writeQueue: make(chan writeTask, 100),
		maxHistory: opts.MaxHistory,
	}
	if enabled {
		l.workerDone.Add(1)
		go l.fileWriteWorker()
	}
	return l
}

// Msg logs message under component. An optional trackID routes a copy of
// the line to that track's debug file.
func (l *Logger) Msg(component, message string, trackID ...string) {
	m := Message{
		Timestamp: time.Now(),
		Component: component,
		Message:   message,
	}
	if len(trackID) > 0 {
		m.TrackID = trackID[0]
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.out, m.String())

	l.history = append(l.history, m)
	if len(l.history) > l.maxHistory {
		l.history = l.history[1:]
	}

	if !l.enabled || l.closed || m.TrackID == "" {
		return
	}
	file := l.trackFile(m.TrackID)
	if file == nil {
		return
	}
	select {
	case l.writeQueue <- writeTask{file: file, content: m.String() + "\n"}:
	default:
		// Queue full, drop message to prevent blocking the frame loop
	}
}

// Verbose logs only when verbose output is enabled
func (l *Logger) Verbose(component, message string, trackID ...string) {
	if !l.verbose {
		return
	}
	l.Msg(component, message, trackID...)
}

// trackFile returns the file for trackID, creating it on first use.
// Caller holds l.mu.
func (l *Logger) trackFile(trackID string) *os.File {
	if f, ok := l.trackFiles[trackID]; ok {
		return f
	}
	path := filepath.Join(l.baseDir, trackID+".txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(l.out, "[DEBUG_LOGGER] Failed to open %s: %v\n", path, err)
		return nil
	}
	l.trackFiles[trackID] = f
	return f
}

func (l *Logger) fileWriteWorker() {
	defer l.workerDone.Done()
	for task := range l.writeQueue {
		task.file.WriteString(task.content)
	}
}

// History returns up to n of the most recent messages, oldest first
func (l *Logger) History(n int) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.history) {
		n = len(l.history)
	}
	out := make([]Message, n)
	copy(out, l.history[len(l.history)-n:])
	return out
}

// Close flushes pending file writes and closes all track files
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	if l.enabled {
		close(l.writeQueue)
		l.workerDone.Wait()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, f := range l.trackFiles {
		f.Close()
		delete(l.trackFiles, id)
	}
}
