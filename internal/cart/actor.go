package cart

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/readmodel"
)

const inboxSize = 64

// errStopped tells the manager the actor shut down before (or while)
// handling the request; the manager retries against a fresh actor.
var errStopped = errors.New("cart actor stopped")

type actor struct {
	customerID string
	catalog    Catalog
	inbox      chan request
	stop       chan struct{}
	stopped    chan struct{}
	lastActive atomic.Int64

	// quantities keyed by product id; productOrder preserves insertion order
	// for stable views.
	quantities   map[string]int
	productOrder []string
}

func newActor(customerID string, catalog Catalog) *actor {
	a := &actor{
		customerID: customerID,
		catalog:    catalog,
		inbox:      make(chan request, inboxSize),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
		quantities: make(map[string]int),
	}
	a.touch()
	go a.run()
	return a
}

func (a *actor) run() {
	for {
		select {
		case req := <-a.inbox:
			req.reply <- a.handle(req)
			a.touch()
		case <-a.stop:
			a.drain()
			close(a.stopped)
			return
		}
	}
}

// drain rejects everything still queued so no caller blocks on a dead actor.
func (a *actor) drain() {
	for {
		select {
		case req := <-a.inbox:
			req.reply <- reply{err: errStopped}
		default:
			return
		}
	}
}

func (a *actor) handle(req request) reply {
	switch req.kind {
	case reqGet:
		return a.view(req)
	case reqAdd:
		return a.addItem(req)
	case reqUpdate:
		return a.updateItem(req)
	case reqRemove:
		a.remove(req.productID)
		return a.view(req)
	case reqClear:
		a.quantities = make(map[string]int)
		a.productOrder = nil
		return a.view(req)
	}
	return reply{err: apperr.New(apperr.CodeInternal, "unknown cart command")}
}

func (a *actor) addItem(req request) reply {
	if req.quantity <= 0 {
		return reply{err: apperr.New(apperr.CodeValidationError, "quantity must be positive").WithFields("quantity")}
	}
	requested := a.quantities[req.productID] + req.quantity
	if _, err := checkAvailability(req.ctx, a.catalog, req.productID, requested); err != nil {
		return reply{err: err}
	}
	if _, exists := a.quantities[req.productID]; !exists {
		a.productOrder = append(a.productOrder, req.productID)
	}
	a.quantities[req.productID] = requested
	return a.view(req)
}

func (a *actor) updateItem(req request) reply {
	if req.quantity < 0 {
		return reply{err: apperr.New(apperr.CodeValidationError, "quantity must not be negative").WithFields("quantity")}
	}
	if req.quantity == 0 {
		a.remove(req.productID)
		return a.view(req)
	}
	if _, err := checkAvailability(req.ctx, a.catalog, req.productID, req.quantity); err != nil {
		return reply{err: err}
	}
	if _, exists := a.quantities[req.productID]; !exists {
		a.productOrder = append(a.productOrder, req.productID)
	}
	a.quantities[req.productID] = req.quantity
	return a.view(req)
}

func (a *actor) remove(productID string) {
	if _, exists := a.quantities[productID]; !exists {
		return
	}
	delete(a.quantities, productID)
	for i, id := range a.productOrder {
		if id == productID {
			a.productOrder = append(a.productOrder[:i], a.productOrder[i+1:]...)
			break
		}
	}
}

// view reprices every line at the catalog's current price. Lines whose
// product has vanished or been unpublished are dropped from the cart, not
// just hidden.
func (a *actor) view(req request) reply {
	items := make([]ViewItem, 0, len(a.productOrder))
	var total int64
	var dropped []string

	for _, productID := range a.productOrder {
		quantity := a.quantities[productID]
		p, found, err := a.catalog.GetProduct(req.ctx, productID)
		if err != nil {
			return reply{err: err}
		}
		if !found || p.Status != readmodel.ProductStatusPublished {
			dropped = append(dropped, productID)
			continue
		}
		subtotal := p.Price * int64(quantity)
		item := ViewItem{
			ProductID: productID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  quantity,
			Subtotal:  subtotal,
		}
		if len(p.ImageURLs) > 0 {
			item.ImageURL = p.ImageURLs[0]
		}
		items = append(items, item)
		total += subtotal
	}

	for _, productID := range dropped {
		a.remove(productID)
	}

	return reply{view: &View{CustomerID: a.customerID, Items: items, Total: total}}
}

func (a *actor) touch() {
	a.lastActive.Store(time.Now().UnixNano())
}

func (a *actor) idleSince(nano int64) bool {
	return a.lastActive.Load() < nano
}
