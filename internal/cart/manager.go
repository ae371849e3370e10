package cart

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const (
	// Actors idle longer than this are reaped; the cart is gone.
	defaultIdleTTL = 30 * time.Minute

	reapInterval = time.Minute
)

// Manager routes cart commands to per-customer actors, creating them on
// demand and reaping the ones that have gone idle.
type Manager struct {
	catalog Catalog
	idleTTL time.Duration

	mu     sync.Mutex
	actors map[string]*actor
	done   chan struct{}
	closed bool
}

func NewManager(catalog Catalog) *Manager {
	m := &Manager{
		catalog: catalog,
		idleTTL: defaultIdleTTL,
		actors:  make(map[string]*actor),
		done:    make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

func (m *Manager) Get(ctx context.Context, customerID string) (*View, error) {
	return m.send(ctx, customerID, request{kind: reqGet})
}

func (m *Manager) AddItem(ctx context.Context, customerID, productID string, quantity int) (*View, error) {
	return m.send(ctx, customerID, request{kind: reqAdd, productID: productID, quantity: quantity})
}

func (m *Manager) UpdateItem(ctx context.Context, customerID, productID string, quantity int) (*View, error) {
	return m.send(ctx, customerID, request{kind: reqUpdate, productID: productID, quantity: quantity})
}

func (m *Manager) RemoveItem(ctx context.Context, customerID, productID string) (*View, error) {
	return m.send(ctx, customerID, request{kind: reqRemove, productID: productID})
}

func (m *Manager) Clear(ctx context.Context, customerID string) (*View, error) {
	return m.send(ctx, customerID, request{kind: reqClear})
}

// Close stops the reaper and every actor.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	actors := make([]*actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.actors = make(map[string]*actor)
	m.mu.Unlock()

	for _, a := range actors {
		close(a.stop)
		<-a.stopped
	}
}

// send delivers one request to the customer's actor and waits for the reply.
// A reap racing the send makes the actor report errStopped; the request is
// then retried against a fresh actor.
func (m *Manager) send(ctx context.Context, customerID string, req request) (*View, error) {
	req.ctx = ctx
	for {
		a := m.actorFor(customerID)

		req.reply = make(chan reply, 1)
		select {
		case a.inbox <- req:
		case <-a.stopped:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		select {
		case rep := <-req.reply:
			if errors.Is(rep.err, errStopped) {
				continue
			}
			return rep.view, rep.err
		case <-a.stopped:
			// The actor may have answered just before shutting down.
			select {
			case rep := <-req.reply:
				if !errors.Is(rep.err, errStopped) {
					return rep.view, rep.err
				}
			default:
			}
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Manager) actorFor(customerID string) *actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[customerID]
	if !ok {
		a = newActor(customerID, m.catalog)
		m.actors[customerID] = a
	}
	return a
}

func (m *Manager) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.reapIdle(time.Now())
		}
	}
}

func (m *Manager) reapIdle(now time.Time) {
	cutoff := now.Add(-m.idleTTL).UnixNano()

	m.mu.Lock()
	var idle []*actor
	for customerID, a := range m.actors {
		if a.idleSince(cutoff) {
			idle = append(idle, a)
			delete(m.actors, customerID)
		}
	}
	m.mu.Unlock()

	for _, a := range idle {
		close(a.stop)
		<-a.stopped
		log.Printf("[Cart] reaped idle cart for customer %s", a.customerID)
	}
}
