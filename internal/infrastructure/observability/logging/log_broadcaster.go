// Package logging provides the log broadcaster for real-time log streaming.
package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// LogEntry represents a single log entry to be sent to the client.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	RenderID  string `json:"renderId,omitempty"`
}

// Client represents a single connected client listening for logs.
type Client struct {
	id      string
	Channel chan []byte
	filters AppliedFilters
}

// AppliedFilters defines the filtering criteria for a client.
type AppliedFilters struct {
	Channel Channel    // "all" matches every channel
	Level   slog.Level // minimum level
}

// LogBroadcaster manages clients and broadcasts log messages.
type LogBroadcaster struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
	logger     *slog.Logger
	stop       chan struct{}
	stopOnce   sync.Once
}

var (
	broadcaster *LogBroadcaster
	once        sync.Once
)

// GetBroadcaster initializes and returns the singleton LogBroadcaster instance.
func GetBroadcaster() *LogBroadcaster {
	once.Do(func() {
		broadcaster = NewLogBroadcaster()
		go broadcaster.run()
	})
	return broadcaster
}

// NewLogBroadcaster creates a broadcaster that is not yet running. Call Run in
// its own goroutine.
func NewLogBroadcaster() *LogBroadcaster {
	return &LogBroadcaster{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 1000),
		logger:     slog.Default().With("component", "LogBroadcaster"),
		stop:       make(chan struct{}),
	}
}

// Run is the central loop that manages the broadcaster's state.
func (b *LogBroadcaster) Run() { b.run() }

func (b *LogBroadcaster) run() {
	for {
		select {
		case <-b.stop:
			b.mu.Lock()
			for client := range b.clients {
				close(client.Channel)
				delete(b.clients, client)
			}
			b.mu.Unlock()
			return
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			b.mu.Unlock()
		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Channel)
			}
			b.mu.Unlock()
		case message := <-b.broadcast:
			b.distribute(message)
		}
	}
}

// distribute sends a log message to all clients whose filters match.
func (b *LogBroadcaster) distribute(message []byte) {
	var entry LogEntry
	if err := json.Unmarshal(message, &entry); err != nil {
		b.logger.Error("Failed to unmarshal log entry for distribution", "error", err)
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(entry.Level))); err != nil {
		level = slog.LevelInfo
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		channelMatch := client.filters.Channel == "all" || client.filters.Channel == Channel(entry.Channel)
		if !channelMatch || level < client.filters.Level {
			continue
		}
		select {
		case client.Channel <- message:
		default:
			// slow client: drop
		}
	}
}

// SubmitLog is used by the SSE writer to send a log entry to the broadcaster.
func (b *LogBroadcaster) SubmitLog(entry LogEntry) {
	message, err := json.Marshal(entry)
	if err != nil {
		b.logger.Error("Failed to marshal log entry for broadcast", "error", err)
		return
	}

	select {
	case b.broadcast <- message:
	default:
		// Never block the logging call under heavy load.
	}
}

// NewClient creates a new client for the broadcaster.
func (b *LogBroadcaster) NewClient(filters AppliedFilters) *Client {
	return &Client{
		id:      ulid.Make().String(),
		Channel: make(chan []byte, 100),
		filters: filters,
	}
}

// Shutdown gracefully stops the broadcaster.
func (b *LogBroadcaster) Shutdown() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// RegisterClient adds a new client. It gives up after timeout if the
// broadcaster is not running.
func (b *LogBroadcaster) RegisterClient(client *Client) error {
	select {
	case b.register <- client:
		return nil
	case <-b.stop:
		return fmt.Errorf("log broadcaster stopped")
	case <-time.After(5 * time.Second):
		return fmt.Errorf("log broadcaster did not accept client %s", client.id)
	}
}

// UnregisterClient removes a client.
func (b *LogBroadcaster) UnregisterClient(client *Client) {
	select {
	case b.unregister <- client:
	case <-b.stop:
	}
}
