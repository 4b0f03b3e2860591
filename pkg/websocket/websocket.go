package websocketPkg

import (
	"LayoutGolang/internal/pipeline"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// IProgressFeed is a client for the run progress websocket. It reconnects on
// demand, so a watcher can outlive server restarts.
type IProgressFeed interface {
	Next() (pipeline.Event, error)
	IsConnected() bool
	Reconnect() error
	Close()
}

type progressFeedClient struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	url          string
	pingInterval time.Duration
	writeTimeout time.Duration
}

func NewProgressFeedClient(url string) IProgressFeed {
	if url == "" {
		url = getProgressFeedURL()
	}

	client := &progressFeedClient{
		url:          url,
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	go client.connectInBackground()

	return client
}

func (c *progressFeedClient) connectInBackground() {
	if err := c.Reconnect(); err != nil {
		log.Printf("Initial connection to progress feed failed: %v. Will retry on demand.", err)
	} else {
		log.Printf("Connected to progress feed at %s", c.url)
	}
}

func (c *progressFeedClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *progressFeedClient) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if c.url == "" {
		return fmt.Errorf("progress feed URL not configured")
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			log.Printf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn

	go c.keepAlive()

	return nil
}

func (c *progressFeedClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *progressFeedClient) keepAlive() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		conn := c.conn
		if conn == nil {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(
			websocket.PingMessage,
			[]byte{},
			time.Now().Add(c.writeTimeout),
		)
		if err != nil {
			log.Printf("Ping failed, marking progress feed connection as dead: %v", err)
			c.conn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

// Next blocks until the feed delivers an event. Runs can be minutes apart, so
// there is no read deadline; a broken connection surfaces as an error.
func (c *progressFeedClient) Next() (pipeline.Event, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		if err := c.Reconnect(); err != nil {
			return pipeline.Event{}, fmt.Errorf("cannot connect to progress feed: %w", err)
		}
		c.mu.Lock()
		conn = c.conn
		c.mu.Unlock()
		if conn == nil {
			return pipeline.Event{}, fmt.Errorf("progress feed connection lost")
		}
	}

	var event pipeline.Event
	if err := conn.ReadJSON(&event); err != nil {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
		return pipeline.Event{}, fmt.Errorf("error reading progress event: %w", err)
	}

	return event, nil
}

func getProgressFeedURL() string {
	url := os.Getenv("PROGRESS_WS_URL")
	if url == "" {
		url = "ws://localhost:3000/api/v1/layout/progress/ws"
	}
	return url
}
