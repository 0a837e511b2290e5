// Package logger provides a thread-safe in-memory event log. The node
// writes one message per applied transaction and per committed block; the
// API serves the recent history and streams new messages to subscribers.
package logger

import (
	"sync"
	"time"
)

// Message represents a single log message
type Message struct {
	Timestamp time.Time         `json:"timestamp"`
	Text      string            `json:"text"`
	Level     string            `json:"level"` // info, warning, error
	Fields    map[string]string `json:"fields,omitempty"`
}

// Logger manages in-memory log messages
type Logger struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int

	subs   map[int]chan Message
	nextID int
}

// New creates a new logger with specified max message count
func New(maxSize int) *Logger {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Logger{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
		subs:     make(map[int]chan Message),
	}
}

// Log adds a new message to the logger
func (l *Logger) Log(level, text string) {
	l.LogFields(level, text, nil)
}

// LogFields adds a message carrying structured fields.
func (l *Logger) LogFields(level, text string, fields map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := Message{
		Timestamp: time.Now(),
		Text:      text,
		Level:     level,
		Fields:    fields,
	}

	l.messages = append(l.messages, msg)

	// Keep only the last maxSize messages
	if len(l.messages) > l.maxSize {
		l.messages = l.messages[len(l.messages)-l.maxSize:]
	}

	// slow subscribers miss messages rather than block the writer
	for _, ch := range l.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Info logs an info-level message
func (l *Logger) Info(text string) {
	l.Log("info", text)
}

// Warning logs a warning-level message
func (l *Logger) Warning(text string) {
	l.Log("warning", text)
}

// Error logs an error-level message
func (l *Logger) Error(text string) {
	l.Log("error", text)
}

// Subscribe returns a channel receiving every new message and a function
// that cancels the subscription and closes the channel.
func (l *Logger) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Message, buffer)

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// GetRecent returns the most recent n messages (newest first)
func (l *Logger) GetRecent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.messages) || n < 0 {
		n = len(l.messages)
	}

	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = l.messages[len(l.messages)-1-i]
	}

	return result
}

// GetAll returns all messages (newest first)
func (l *Logger) GetAll() []Message {
	return l.GetRecent(-1)
}
