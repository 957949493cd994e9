package transport

import (
	"errors"
	"io"
	"log"

	"golang.org/x/net/websocket"
)

// ReceiverFactory builds the receiver serving one connection; replies go to tx.
type ReceiverFactory func(tx Transmitter) Receiver

// WebsocketHandler serves commands over websocket. Every message is one
// command and every reply is sent as one text message.
func WebsocketHandler(factory ReceiverFactory) websocket.Handler {
	return func(ws *websocket.Conn) {
		defer ws.Close()

		r := factory(&wsTransmitter{ws: ws})
		for {
			var msg []byte
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				if !errors.Is(err, io.EOF) {
					log.Printf("Error reading websocket command: %v", err)
				}
				return
			}
			if len(msg) > MaxCommandLen {
				msg = msg[:MaxCommandLen]
			}
			r.Deliver(terminate(msg))
		}
	}
}

type wsTransmitter struct {
	ws *websocket.Conn
}

func (t *wsTransmitter) Transmit(p []byte) error {
	return websocket.Message.Send(t.ws, string(p))
}
