package sse

import (
	"context"
	"sync"

	"ms-booking/internal/models"
)

// BookingEventEmitter fans booking events out to calendar subscribers of a resource
type BookingEventEmitter struct {
	// key: tenantID/resourceID, value: client channels
	clients     map[string][]chan models.BookingEvent
	clientMutex sync.RWMutex
}

func NewBookingEventEmitter() *BookingEventEmitter {
	return &BookingEventEmitter{
		clients: make(map[string][]chan models.BookingEvent),
	}
}

func resourceKey(tenantID, resourceID string) string {
	return tenantID + "/" + resourceID
}

// Subscribe adds a client to a resource's booking events. The channel is closed once ctx is done.
func (e *BookingEventEmitter) Subscribe(ctx context.Context, tenantID, resourceID string) <-chan models.BookingEvent {
	clientChan := make(chan models.BookingEvent, 10)
	key := resourceKey(tenantID, resourceID)

	e.clientMutex.Lock()
	e.clients[key] = append(e.clients[key], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(key, clientChan)
	}()

	return clientChan
}

// Emit broadcasts an event to every subscriber of its resource
func (e *BookingEventEmitter) Emit(event models.BookingEvent) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for _, clientChan := range e.clients[resourceKey(event.TenantID, event.ResourceID)] {
		// slow clients miss events rather than stall the ledger
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *BookingEventEmitter) PublishBookingCreated(ctx context.Context, b models.Booking) error {
	e.Emit(models.NewBookingEvent(models.BookingEventCreated, b))
	return nil
}

func (e *BookingEventEmitter) PublishBookingUpdated(ctx context.Context, b models.Booking) error {
	eventType := models.BookingEventUpdated
	if b.Status == models.BookingStatusCanceled {
		eventType = models.BookingEventCanceled
	}
	e.Emit(models.NewBookingEvent(eventType, b))
	return nil
}

func (e *BookingEventEmitter) removeClient(key string, clientChan chan models.BookingEvent) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[key]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[key] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[key]) == 0 {
		delete(e.clients, key)
	}
}

// ClientCount returns the number of clients subscribed to a resource
func (e *BookingEventEmitter) ClientCount(tenantID, resourceID string) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[resourceKey(tenantID, resourceID)])
}
