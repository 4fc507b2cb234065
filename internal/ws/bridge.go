package ws

import (
	"log"
)

// Publisher wraps dashboard state in envelopes and broadcasts it to the hub.
type Publisher struct {
	hub *Hub
}

func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

// PublishLive pushes an instantaneous snapshot to all clients.
func (p *Publisher) PublishLive(payload LivePayload) {
	msg, err := NewEnvelope(TypeLiveUpdate, payload)
	if err != nil {
		log.Printf("Error marshaling live update: %v", err)
		return
	}
	p.hub.Broadcast(TypeLiveUpdate, msg)
}

// PublishToday pushes the refreshed day-so-far rollup to all clients.
func (p *Publisher) PublishToday(totals TodayTotals) {
	msg, err := NewEnvelope(TypeTodayUpdate, totals)
	if err != nil {
		log.Printf("Error marshaling today update: %v", err)
		return
	}
	p.hub.Broadcast(TypeTodayUpdate, msg)
}
