package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("ws is closed")

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Message struct {
	MsgType int
	Message []byte
}

// Client is a push-only connection. Incoming frames are discarded, reading only keeps
// control frames flowing and notices the peer going away.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeChan chan *Message

	closed bool
	lock   sync.Mutex
}

func (ws *Client) Close() error {
	ws.lock.Lock()
	defer ws.lock.Unlock()

	if ws.closed {
		return nil
	}

	metrics.WebSocketConnections.Dec()
	ws.closed = true
	close(ws.writeChan)

	return ws.conn.Close()
}

func NewWsClient(conn *websocket.Conn, logger *slog.Logger) (client *Client, done chan struct{}) {
	client = &Client{
		conn:   conn,
		logger: logger,

		writeChan: make(chan *Message, 5),
	}

	metrics.WebSocketConnections.Inc()

	done = make(chan struct{})

	go func() {
		defer client.Close()

		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer close(done)
		defer func() {
			for range client.writeChan {
			}
		}()

		for msg := range client.writeChan {
			if err := conn.WriteMessage(msg.MsgType, msg.Message); err != nil {
				client.logger.Debug("ws write failed", "err", err)
				break
			}
		}
	}()

	return client, done
}

func (ws *Client) Send(msg *Message) error {
	ws.lock.Lock()
	defer ws.lock.Unlock()

	if ws.closed {
		return ErrClosed
	}

	ws.writeChan <- msg

	return nil
}

func (ws *Client) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal ws message: %w", err)
	}

	return ws.Send(&Message{
		MsgType: websocket.TextMessage,
		Message: data,
	})
}
