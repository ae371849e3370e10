package product

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/domain/aggregate"
	"github.com/example/eventshop/internal/infrastructure/store"
)

// Image ceiling enforced at the command surface. Replay ignores extras
// silently so historic streams never fail to load.
const MaxImages = 10

const (
	StatusPublished   = "PUBLISHED"
	StatusUnpublished = "UNPUBLISHED"
)

// Product is the replayed aggregate state.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       int64
	CategoryID  string
	Stock       int
	Status      string
	ImageURLs   []string
	Deleted     bool
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Product) GetID() string   { return p.ID }
func (p *Product) GetVersion() int { return p.Version }

// ApplyEvent folds one event into the state. Replay never errors on policy
// violations; only undecodable payloads fail.
func (p *Product) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventProductCreated:
		var e ProductCreated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		p.ID = e.ProductID
		p.Name = e.Name
		p.Description = e.Description
		p.Price = e.Price
		p.CategoryID = e.CategoryID
		p.Stock = e.Stock
		p.Status = e.Status
		p.CreatedAt = e.CreatedAt
		p.UpdatedAt = e.CreatedAt

	case EventProductUpdated:
		var e ProductUpdated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		if e.Name != nil {
			p.Name = *e.Name
		}
		if e.Description != nil {
			p.Description = *e.Description
		}
		if e.Price != nil {
			p.Price = *e.Price
		}
		if e.CategoryID != nil {
			p.CategoryID = *e.CategoryID
		}
		if e.Status != nil {
			p.Status = *e.Status
		}
		p.UpdatedAt = e.UpdatedAt

	case EventProductDeleted:
		p.Deleted = true

	case EventStockUpdated:
		var e StockUpdated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		p.Stock = e.Quantity
		p.UpdatedAt = e.UpdatedAt

	case EventStockDecreased:
		var e StockDecreased
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		p.Stock -= e.Quantity
		if p.Stock < 0 {
			p.Stock = 0
		}

	case EventStockIncreased:
		var e StockIncreased
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		p.Stock += e.Quantity

	case EventProductImageAssociated:
		var e ProductImageAssociated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		if len(p.ImageURLs) < MaxImages {
			p.ImageURLs = append(p.ImageURLs, e.ImageURL)
		}
	}

	p.Version = event.Version
	return nil
}

// Service owns load, decide and append for the product aggregate.
type Service struct {
	log store.EventLog
}

func NewService(log store.EventLog) *Service {
	return &Service{log: log}
}

// Load replays a product. Deleted products count as absent.
func (s *Service) Load(ctx context.Context, productID string) (*Product, error) {
	p, found, err := aggregate.Load(ctx, s.log, productID, func() *Product { return &Product{} })
	if err != nil {
		return nil, err
	}
	if !found || p.Deleted {
		return nil, apperr.New(apperr.CodeProductNotFound, "product not found")
	}
	return p, nil
}

// CreateParams are the attributes of a new product.
type CreateParams struct {
	Name        string
	Description string
	Price       int64
	CategoryID  string
	Stock       int
	Status      string
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Product, []store.Event, error) {
	if params.Name == "" {
		return nil, nil, apperr.New(apperr.CodeValidationError, "name is required").WithFields("name")
	}
	if params.Price < 0 {
		return nil, nil, apperr.New(apperr.CodeValidationError, "price must not be negative").WithFields("price")
	}
	if params.Stock < 0 {
		return nil, nil, apperr.New(apperr.CodeValidationError, "stock must not be negative").WithFields("stock")
	}
	if params.Status == "" {
		params.Status = StatusPublished
	}
	if params.Status != StatusPublished && params.Status != StatusUnpublished {
		return nil, nil, apperr.New(apperr.CodeValidationError, "invalid status").WithFields("status")
	}

	productID := uuid.New().String()
	now := time.Now().UTC()

	events, err := s.log.Append(ctx, productID, store.AggregateTypeProduct, []store.EventData{{
		EventType: EventProductCreated,
		Payload: ProductCreated{
			ProductID:   productID,
			Name:        params.Name,
			Description: params.Description,
			Price:       params.Price,
			CategoryID:  params.CategoryID,
			Stock:       params.Stock,
			Status:      params.Status,
			CreatedAt:   now,
		},
	}}, 0)
	if err != nil {
		return nil, nil, err
	}

	return &Product{
		ID:          productID,
		Name:        params.Name,
		Description: params.Description,
		Price:       params.Price,
		CategoryID:  params.CategoryID,
		Stock:       params.Stock,
		Status:      params.Status,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, events, nil
}

// Changes is a sparse update; nil fields are left alone and never recorded.
type Changes struct {
	Name        *string
	Description *string
	Price       *int64
	CategoryID  *string
	Status      *string
}

func (c Changes) empty() bool {
	return c.Name == nil && c.Description == nil && c.Price == nil && c.CategoryID == nil && c.Status == nil
}

// Update appends a ProductUpdated carrying only the supplied keys.
// Unpublished products refuse updates the same way absent ones do.
func (s *Service) Update(ctx context.Context, productID string, changes Changes) (*Product, []store.Event, error) {
	p, err := s.Load(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status == StatusUnpublished {
		return nil, nil, apperr.New(apperr.CodeProductNotFound, "product not found")
	}
	if changes.empty() {
		return nil, nil, apperr.New(apperr.CodeValidationError, "no changes supplied")
	}
	if changes.Name != nil && *changes.Name == "" {
		return nil, nil, apperr.New(apperr.CodeValidationError, "name is required").WithFields("name")
	}
	if changes.Price != nil && *changes.Price < 0 {
		return nil, nil, apperr.New(apperr.CodeValidationError, "price must not be negative").WithFields("price")
	}
	if changes.Status != nil && *changes.Status != StatusPublished && *changes.Status != StatusUnpublished {
		return nil, nil, apperr.New(apperr.CodeValidationError, "invalid status").WithFields("status")
	}

	events, err := s.log.Append(ctx, productID, store.AggregateTypeProduct, []store.EventData{{
		EventType: EventProductUpdated,
		Payload: ProductUpdated{
			ProductID:   productID,
			Name:        changes.Name,
			Description: changes.Description,
			Price:       changes.Price,
			CategoryID:  changes.CategoryID,
			Status:      changes.Status,
			UpdatedAt:   time.Now().UTC(),
		},
	}}, p.Version)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range events {
		if err := p.ApplyEvent(ev); err != nil {
			return nil, nil, err
		}
	}
	return p, events, nil
}

func (s *Service) Delete(ctx context.Context, productID string) (*Product, []store.Event, error) {
	p, err := s.Load(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	events, err := s.log.Append(ctx, productID, store.AggregateTypeProduct, []store.EventData{{
		EventType: EventProductDeleted,
		Payload:   ProductDeleted{ProductID: productID, DeletedAt: time.Now().UTC()},
	}}, p.Version)
	if err != nil {
		return nil, nil, err
	}
	return p, events, nil
}

// UpdateStock replaces the absolute quantity.
func (s *Service) UpdateStock(ctx context.Context, productID string, quantity int) (*Product, []store.Event, error) {
	if quantity < 0 {
		return nil, nil, apperr.New(apperr.CodeValidationError, "stock must not be negative").WithFields("stock")
	}
	p, err := s.Load(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	events, err := s.log.Append(ctx, productID, store.AggregateTypeProduct, []store.EventData{{
		EventType: EventStockUpdated,
		Payload:   StockUpdated{ProductID: productID, Quantity: quantity, UpdatedAt: time.Now().UTC()},
	}}, p.Version)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range events {
		if err := p.ApplyEvent(ev); err != nil {
			return nil, nil, err
		}
	}
	return p, events, nil
}

// DecreaseStock records a reservation for an order.
func (s *Service) DecreaseStock(ctx context.Context, productID string, quantity int, orderID string) (*Product, []store.Event, error) {
	p, err := s.Load(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	events, err := s.log.Append(ctx, productID, store.AggregateTypeProduct, []store.EventData{{
		EventType: EventStockDecreased,
		Payload:   StockDecreased{ProductID: productID, Quantity: quantity, OrderID: orderID, CreatedAt: time.Now().UTC()},
	}}, p.Version)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range events {
		if err := p.ApplyEvent(ev); err != nil {
			return nil, nil, err
		}
	}
	return p, events, nil
}

// IncreaseStock restores quantity after a cancellation.
func (s *Service) IncreaseStock(ctx context.Context, productID string, quantity int, orderID string) (*Product, []store.Event, error) {
	p, err := s.Load(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	events, err := s.log.Append(ctx, productID, store.AggregateTypeProduct, []store.EventData{{
		EventType: EventStockIncreased,
		Payload:   StockIncreased{ProductID: productID, Quantity: quantity, OrderID: orderID, CreatedAt: time.Now().UTC()},
	}}, p.Version)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range events {
		if err := p.ApplyEvent(ev); err != nil {
			return nil, nil, err
		}
	}
	return p, events, nil
}

// AssociateImage records an uploaded image URL, capped at ten per product.
func (s *Service) AssociateImage(ctx context.Context, productID, imageURL string) (*Product, []store.Event, error) {
	p, err := s.Load(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if len(p.ImageURLs) >= MaxImages {
		return nil, nil, apperr.Newf(apperr.CodeImageLimitExceeded, "a product can hold at most %d images", MaxImages)
	}

	events, err := s.log.Append(ctx, productID, store.AggregateTypeProduct, []store.EventData{{
		EventType: EventProductImageAssociated,
		Payload:   ProductImageAssociated{ProductID: productID, ImageURL: imageURL, CreatedAt: time.Now().UTC()},
	}}, p.Version)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range events {
		if err := p.ApplyEvent(ev); err != nil {
			return nil, nil, err
		}
	}
	return p, events, nil
}
