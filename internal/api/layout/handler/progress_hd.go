package layoutHandler

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

func (h *LayoutHandler) handleProgressWebSocket(c *websocket.Conn) {
	h.log.Info("Progress WebSocket client connected")
	defer h.log.Info("Progress WebSocket client disconnected")

	events, unsubscribe := h.layoutService.SubscribeProgress()
	defer unsubscribe()

	c.SetPingHandler(func(data string) error {
		h.log.Debug("Received ping, sending pong")
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	// Reads are only used to notice the peer going away; the feed is
	// one-directional.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.log.Errorf("Progress WebSocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				h.log.Errorf("Error setting write deadline: %v", err)
				return
			}

			if err := c.WriteJSON(ev); err != nil {
				h.log.Errorf("Error writing progress event: %v", err)
				return
			}
		}
	}
}
