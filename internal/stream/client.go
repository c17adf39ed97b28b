package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kwik.app/dispatch/common/logger"
	"kwik.app/dispatch/internal/emotion"
	"kwik.app/dispatch/internal/model"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20

	headerAPIKey   = "X-Hume-Api-Key"
	headerConfigID = "X-Hume-Config-Id"
)

var ErrNotConnected = errors.New("emotion stream not connected")

type Config struct {
	URL      string
	APIKey   string
	ConfigID string
}

// Handlers are optional callbacks invoked from the read loop.
type Handlers struct {
	OnMessage func(model.ConversationMessage)
	OnEmotion func(model.EmotionFrame)
	OnError   func(error)
}

// wireMessage is the provider's JSON envelope. Text may arrive top-level or
// nested under message.
type wireMessage struct {
	Type    model.MessageType `json:"type"`
	Text    string            `json:"text"`
	Message *struct {
		Text string `json:"text"`
	} `json:"message"`
	Emotions       model.EmotionFrame `json:"emotions"`
	ConversationID string             `json:"conversation_id"`
	MessageID      string             `json:"message_id"`
}

// Client is a live connection to the emotion provider. It feeds every received
// message into one ConversationBuffer.
type Client struct {
	cfg      Config
	handlers Handlers
	dialer   *websocket.Dialer
	now      func() time.Time

	mu     sync.Mutex
	conn   *websocket.Conn
	buffer *emotion.ConversationBuffer
	done   chan struct{}
}

func NewClient(cfg Config, handlers Handlers) *Client {
	return &Client{
		cfg:      cfg,
		handlers: handlers,
		dialer:   websocket.DefaultDialer,
		now:      time.Now,
		buffer:   emotion.NewConversationBuffer(time.Now()),
	}
}

// Connect dials the provider and starts the read loop. The read loop stops when
// ctx is cancelled, the peer closes, or Close is called.
func (c *Client) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set(headerAPIKey, c.cfg.APIKey)
	if c.cfg.ConfigID != "" {
		header.Set(headerConfigID, c.cfg.ConfigID)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dialing emotion stream: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.buffer = emotion.NewConversationBuffer(c.now())
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "dispatch.stream.client",
	})
	slog.InfoContext(ctx, "emotion stream connected")

	go c.readPump(ctx, conn, done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()
	return nil
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.WarnContext(ctx, "emotion stream read failed", "error", err)
				c.reportError(fmt.Errorf("reading emotion stream: %w", err))
			}
			slog.InfoContext(ctx, "emotion stream disconnected")
			return
		}

		if err := c.handleMessage(data); err != nil {
			slog.WarnContext(ctx, "dropping malformed emotion stream message", "error", err)
			c.reportError(err)
		}
	}
}

func (c *Client) handleMessage(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decoding emotion stream message: %w", err)
	}

	text := wire.Text
	if wire.Message != nil && wire.Message.Text != "" {
		text = wire.Message.Text
	}

	c.mu.Lock()
	msg := model.ConversationMessage{
		Type:           wire.Type,
		Text:           text,
		Emotions:       wire.Emotions,
		Timestamp:      c.now(),
		ConversationID: wire.ConversationID,
		MessageID:      wire.MessageID,
	}
	c.buffer.RecordMessage(msg)
	if msg.ConversationID == "" {
		msg.ConversationID = c.buffer.ConversationID()
	}
	c.mu.Unlock()

	if len(wire.Emotions) > 0 && c.handlers.OnEmotion != nil {
		c.handlers.OnEmotion(wire.Emotions)
	}
	if c.handlers.OnMessage != nil {
		c.handlers.OnMessage(msg)
	}
	return nil
}

func (c *Client) reportError(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

// SendText sends a text_input message, used for text-only analysis.
func (c *Client) SendText(text string) error {
	payload, err := json.Marshal(map[string]string{
		"type": "text_input",
		"text": text,
	})
	if err != nil {
		return fmt.Errorf("encoding text input: %w", err)
	}
	return c.write(websocket.TextMessage, payload)
}

// SendAudio sends raw audio bytes as a binary frame.
func (c *Client) SendAudio(audio []byte) error {
	return c.write(websocket.BinaryMessage, audio)
}

func (c *Client) write(messageType int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		return fmt.Errorf("writing to emotion stream: %w", err)
	}
	return nil
}

// Close sends a close frame, closes the connection and finalizes the buffer.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if conn != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.buffer.Finalize(c.now())
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Client) TopEmotions(limit int) []model.TopEmotion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.TopEmotions(limit)
}

func (c *Client) AnalyzeForEmergencyFlags() model.EmergencyFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.AnalyzeForEmergencyFlags()
}

func (c *Client) ConversationData() model.ConversationData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Data()
}

// Readings returns every emotion reading received so far, in arrival order.
func (c *Client) Readings() []model.EmotionReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Readings()
}

func (c *Client) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Transcript()
}
