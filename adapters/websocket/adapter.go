// Package websocket streams achievement events to clients over WebSocket.
package websocket

import (
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"achievekit/core"
	"achievekit/realtime"
)

// Handler returns an http.Handler that upgrades to WebSocket and streams
// events from the hub. A `save` query parameter narrows the stream to one
// save slot.
func Handler(hub *realtime.Hub) http.Handler {
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var (
			id int
			ch <-chan core.Event
		)
		if save, err := core.NormalizeSaveID(core.SaveID(r.URL.Query().Get("save"))); err == nil {
			id, ch = hub.SubscribeSave(256, save)
		} else {
			id, ch = hub.Subscribe(256)
		}
		defer hub.Unsubscribe(id)

		for ev := range ch {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
				return
			}
		}
	})
}
