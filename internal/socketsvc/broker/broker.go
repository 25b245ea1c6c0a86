package broker

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/vertibet/crash-services/internal/comm"
)

// Broker fans game service events out to websocket clients. Messages with a
// SocketId go to that one connection; messages without one are round events
// and broadcast to everyone.
type Broker struct {
	Conn             *nats.Conn
	GetConnection    func(string) (*websocket.Conn, bool)
	RangeConnections func(func(string, *websocket.Conn) bool)
}

func NewBroker(conn *nats.Conn,
	fncGetConnection func(string) (*websocket.Conn, bool),
	fncRangeConnections func(func(string, *websocket.Conn) bool)) *Broker {
	return &Broker{
		Conn:             conn,
		GetConnection:    fncGetConnection,
		RangeConnections: fncRangeConnections,
	}
}

// consume message from game service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message to game service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages receives message from game service
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	err := json.Unmarshal(msgNats.Data, &message)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch message.Type {
	case "init-response", "place-bet-response", "cashout-response",
		"wager-response", "rotate-seed-response":
		b.sendMessage(message)
	case "round-state", "round-tick", "bet-placed", "bet-cashedout", "round-crashed":
		b.broadcast(message)
	default:
		log.Warnf("unknown message type %s", message.Type)
	}
}

// send socket message to one web client
func (b *Broker) sendMessage(m *comm.WSMessage) {
	socketId := m.SocketId
	if conn, ok := b.GetConnection(socketId); ok {
		if err := conn.WriteJSON(m); err != nil {
			log.Println(err)
		}
	}
}

// broadcast a round event to every connected client
func (b *Broker) broadcast(m *comm.WSMessage) {
	b.RangeConnections(func(socketId string, conn *websocket.Conn) bool {
		if err := conn.WriteJSON(m); err != nil {
			log.Debugf("broadcast write to %s failed: %v", socketId, err)
		}
		return true
	})
}
