package endpoints

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nsyasa/okul-bilgi-pano/internal/http/api/tv/packets"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /api/tv/socket streams every published snapshot to the screen. The
// screen may send script error reports back on the same connection.
func (d *DisplayController) socket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	snapshots, unsubscribe := d.display.Subscribe()
	defer unsubscribe()

	log.Info().Str("remote", c.Request.RemoteAddr).Msg("display socket connected")
	defer log.Info().Str("remote", c.Request.RemoteAddr).Msg("display socket disconnected")

	closed := make(chan struct{})
	go d.readSocket(conn, closed)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case s := <-snapshots:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(s); err != nil {
				log.Debug().Err(err).Msg("socket write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (d *DisplayController) readSocket(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg packets.SocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed socket message")
			continue
		}
		if msg.Type == packets.SocketScriptError && msg.Message != "" {
			d.display.ReportScriptError(msg.Message)
		}
	}
}
