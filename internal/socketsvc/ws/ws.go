package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/vertibet/crash-services/internal/comm"
	"github.com/vertibet/crash-services/internal/socketsvc/broker"
)

// Ws tracks live websocket connections by socketId and forwards game commands
// to the game service over NATS.
type Ws struct {
	connMap sync.Map // socketId -> *websocket.Conn
	Broker  *broker.Broker
}

func NewWs() *Ws {
	return &Ws{}
}

// forwardable message types; everything else is dropped at the edge
var forwardTypes = map[string]bool{
	"init":        true,
	"place-bet":   true,
	"cashout":     true,
	"wager":       true,
	"rotate-seed": true,
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	if !forwardTypes[message.Type] {
		log.Warnf("unknown event received: %s", message.Type)
		return
	}

	// Stamp the message with the socket so the game service can address
	// its response.
	message.SocketId = socketId

	bytes, err := json.Marshal(message)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	topic := "socket.service"
	if err := s.Broker.Publish(topic, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", topic, err)
		return
	}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

// RangeConnections visits every live connection, for round event broadcast.
func (s *Ws) RangeConnections(fn func(socketId string, conn *websocket.Conn) bool) {
	s.connMap.Range(func(key, value interface{}) bool {
		return fn(key.(string), value.(*websocket.Conn))
	})
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}
