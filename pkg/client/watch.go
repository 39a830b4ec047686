package client

import (
	"net"

	"github.com/gorilla/websocket"

	"github.com/kematusik/tomoscan/pkg/events"
)

// Watch opens the daemon's event stream and calls fn for every event
// until the stream ends or fn returns an error. It blocks.
func (c *Client) Watch(fn func(events.Event) error) error {
	dialer := websocket.Dialer{
		NetDial: func(_, _ string) (net.Conn, error) {
			return dialDaemon(c.socketPath)
		},
	}

	ws, _, err := dialer.Dial("ws://unix/events/ws", nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	for {
		var ev events.Event
		if err := ws.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
