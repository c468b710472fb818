package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches an upgraded connection of operatorID to the hub. initial
// is written first so a fresh console renders without waiting for a change.
func ServeWs(hub *Hub, c *websocket.Conn, operatorID uuid.UUID, initial []byte) {
	client := &Client{Hub: hub, Conn: c, UserID: operatorID, Send: make(chan []byte, 256)}
	if initial != nil {
		client.Send <- initial
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
