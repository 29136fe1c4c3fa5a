// Package ingest reconstructs parent/child entity hierarchies from the flat
// record stream of a completed bulk export and writes them to the entity
// store idempotently.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsight/backend/internal/domain/export"
	"github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/store"
)

// Summary is the outcome of ingesting one export's record stream
type Summary struct {
	// RecordsProcessed counts top-level creations/updates plus successfully
	// attached children
	RecordsProcessed int
	// RecordsSkipped counts malformed lines and records the pipeline cannot place
	RecordsSkipped int
	// UnresolvedChildren counts child records whose parent was never observed
	UnresolvedChildren int
}

// saveConflictRetries bounds how often a cross-job version conflict on the
// same aggregate is retried before the record is skipped
const saveConflictRetries = 3

// Ingestor classifies flat records and upserts aggregates into the store.
//
// It keeps an in-memory id→aggregate index for the records seen so far in one
// run, so parent lookups are O(1) and repeated store round-trips within a job
// are avoided. Child records arriving before their parent are buffered and
// retried once after the stream ends; children still unresolved then are
// logged and counted, never fatal.
type Ingestor struct {
	customers store.CustomerRepository
	orders    store.OrderRepository
	products  store.ProductRepository
	logger    *zap.Logger
}

// NewIngestor creates a new Ingestor
func NewIngestor(
	customers store.CustomerRepository,
	orders store.OrderRepository,
	products store.ProductRepository,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		customers: customers,
		orders:    orders,
		products:  products,
		logger:    logger,
	}
}

// run carries the per-job ingestion state
type run struct {
	shopID uuid.UUID
	jobID  uuid.UUID

	customers map[string]*store.Customer
	orders    map[string]*store.Order
	products  map[string]*store.Product
	// orderOwners resolves an embedded order's platform id to the customer
	// holding it, so line items reach the right aggregate in O(1)
	orderOwners map[string]*store.Customer

	orphans []*platform.Record
	summary Summary
}

// Ingest consumes the record stream of a completed job and returns the summary.
// A data-integrity abort from the stream is returned as platform.ErrDataIntegrity;
// every other per-record problem is absorbed into the summary.
func (ing *Ingestor) Ingest(ctx context.Context, job *export.BulkExportJob, stream platform.RecordStream) (*Summary, error) {
	defer func() { _ = stream.Close() }()

	r := &run{
		shopID:      job.ShopID,
		jobID:       job.ID,
		customers:   make(map[string]*store.Customer),
		orders:      make(map[string]*store.Order),
		products:    make(map[string]*store.Product),
		orderOwners: make(map[string]*store.Customer),
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, platform.ErrDataIntegrity) {
				return nil, err
			}
			return nil, fmt.Errorf("reading export stream: %w", err)
		}

		if err := ing.ingestRecord(ctx, r, rec); err != nil {
			return nil, err
		}
	}

	// One retry pass for children that arrived before their parent
	orphans := r.orphans
	r.orphans = nil
	for _, rec := range orphans {
		if err := ing.ingestRecord(ctx, r, rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range r.orphans {
		r.summary.UnresolvedChildren++
		ing.logger.Warn("child record has no resolvable parent",
			zap.String("job_id", r.jobID.String()),
			zap.String("record_id", rec.ID),
			zap.String("parent_id", rec.ParentID),
			zap.String("kind", string(rec.Kind)),
		)
	}

	r.summary.RecordsSkipped += stream.Skipped()
	return &r.summary, nil
}

// ingestRecord places one record. Children whose parent is not resolvable yet
// land in the orphan buffer.
func (ing *Ingestor) ingestRecord(ctx context.Context, r *run, rec *platform.Record) error {
	if !rec.IsChild() {
		return ing.upsertTopLevel(ctx, r, rec)
	}

	res, err := ing.attachChild(ctx, r, rec)
	if err != nil {
		return err
	}
	switch res {
	case attachDone:
		r.summary.RecordsProcessed++
	case attachDeferred:
		r.orphans = append(r.orphans, rec)
	}
	return nil
}

// attachResult tells the caller how a child record was handled. A skipped
// record counts once, in the skipped bucket only.
type attachResult int

const (
	attachDeferred attachResult = iota
	attachDone
	attachSkipped
)

// upsertTopLevel creates or merges a top-level aggregate
func (ing *Ingestor) upsertTopLevel(ctx context.Context, r *run, rec *platform.Record) error {
	switch rec.Kind {
	case platform.RecordKindCustomer:
		c, err := ing.resolveCustomer(ctx, r, rec.ID)
		if err != nil {
			return err
		}
		if c == nil {
			c = store.NewCustomerFromRecord(r.shopID, rec)
			r.customers[rec.ID] = c
		} else {
			c.Apply(rec)
		}
		if err := ing.saveCustomer(ctx, r, c); err != nil {
			return err
		}

	case platform.RecordKindOrder:
		o, err := ing.resolveOrder(ctx, r, rec.ID)
		if err != nil {
			return err
		}
		if o == nil {
			o = store.NewOrderFromRecord(r.shopID, rec)
			r.orders[rec.ID] = o
		} else {
			o.Apply(rec)
		}
		if err := ing.saveOrder(ctx, r, o); err != nil {
			return err
		}

	case platform.RecordKindProduct:
		p, err := ing.resolveProduct(ctx, r, rec.ID)
		if err != nil {
			return err
		}
		if p == nil {
			p = store.NewProductFromRecord(r.shopID, rec)
			r.products[rec.ID] = p
		} else {
			p.Apply(rec)
		}
		if err := ing.saveProduct(ctx, r, p); err != nil {
			return err
		}

	default:
		r.summary.RecordsSkipped++
		ing.logger.Warn("record kind cannot appear top-level, skipping",
			zap.String("job_id", r.jobID.String()),
			zap.String("record_id", rec.ID),
			zap.String("kind", string(rec.Kind)),
		)
		return nil
	}

	r.summary.RecordsProcessed++
	return nil
}

// attachChild resolves a child's parent and appends the child with dedup.
// attachDeferred means the parent cannot be found yet.
func (ing *Ingestor) attachChild(ctx context.Context, r *run, rec *platform.Record) (attachResult, error) {
	switch rec.Kind {
	case platform.RecordKindOrder:
		// An order nested under a customer export
		c, err := ing.resolveCustomer(ctx, r, rec.ParentID)
		if err != nil || c == nil {
			return attachDeferred, err
		}
		o, _ := c.UpsertOrder(rec)
		r.orderOwners[o.PlatformID] = c
		return attachDone, ing.saveCustomer(ctx, r, c)

	case platform.RecordKindLineItem:
		// Parent may be an order embedded in a customer or a standalone order
		if c, ok := r.orderOwners[rec.ParentID]; ok {
			if o := c.FindOrder(rec.ParentID); o != nil {
				o.UpsertLineItem(rec)
				return attachDone, ing.saveCustomer(ctx, r, c)
			}
		}
		o, err := ing.resolveOrder(ctx, r, rec.ParentID)
		if err != nil {
			return attachDeferred, err
		}
		if o != nil {
			o.UpsertLineItem(rec)
			return attachDone, ing.saveOrder(ctx, r, o)
		}
		c, err := ing.customerByOrderID(ctx, r, rec.ParentID)
		if err != nil {
			return attachDeferred, err
		}
		if c != nil {
			if emb := c.FindOrder(rec.ParentID); emb != nil {
				emb.UpsertLineItem(rec)
				r.orderOwners[rec.ParentID] = c
				return attachDone, ing.saveCustomer(ctx, r, c)
			}
		}
		return attachDeferred, nil

	case platform.RecordKindVariant:
		p, err := ing.resolveProduct(ctx, r, rec.ParentID)
		if err != nil || p == nil {
			return attachDeferred, err
		}
		p.UpsertVariant(rec)
		return attachDone, ing.saveProduct(ctx, r, p)

	default:
		// Customer and Product never appear as children
		r.summary.RecordsSkipped++
		ing.logger.Warn("record kind cannot appear as a child, skipping",
			zap.String("job_id", r.jobID.String()),
			zap.String("record_id", rec.ID),
			zap.String("kind", string(rec.Kind)),
		)
		return attachSkipped, nil
	}
}

// resolveCustomer looks up a customer in the run index first, then the store
func (ing *Ingestor) resolveCustomer(ctx context.Context, r *run, platformID string) (*store.Customer, error) {
	if c, ok := r.customers[platformID]; ok {
		return c, nil
	}
	c, err := ing.customers.FindByPlatformID(ctx, r.shopID, platformID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading customer %s: %w", platformID, err)
	}
	r.customers[platformID] = c
	for _, o := range c.Orders {
		r.orderOwners[o.PlatformID] = c
	}
	return c, nil
}

// customerByOrderID finds the customer owning an embedded order in the store
func (ing *Ingestor) customerByOrderID(ctx context.Context, r *run, orderPlatformID string) (*store.Customer, error) {
	c, err := ing.customers.FindByOrderPlatformID(ctx, r.shopID, orderPlatformID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading customer by order %s: %w", orderPlatformID, err)
	}
	if cached, ok := r.customers[c.PlatformID]; ok {
		return cached, nil
	}
	r.customers[c.PlatformID] = c
	for _, o := range c.Orders {
		r.orderOwners[o.PlatformID] = c
	}
	return c, nil
}

func (ing *Ingestor) resolveOrder(ctx context.Context, r *run, platformID string) (*store.Order, error) {
	if o, ok := r.orders[platformID]; ok {
		return o, nil
	}
	o, err := ing.orders.FindByPlatformID(ctx, r.shopID, platformID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", platformID, err)
	}
	r.orders[platformID] = o
	return o, nil
}

func (ing *Ingestor) resolveProduct(ctx context.Context, r *run, platformID string) (*store.Product, error) {
	if p, ok := r.products[platformID]; ok {
		return p, nil
	}
	p, err := ing.products.FindByPlatformID(ctx, r.shopID, platformID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading product %s: %w", platformID, err)
	}
	r.products[platformID] = p
	return p, nil
}

// saveCustomer persists a customer, absorbing cross-job version conflicts by
// adopting the stored version and re-saving. The in-memory aggregate wins.
func (ing *Ingestor) saveCustomer(ctx context.Context, r *run, c *store.Customer) error {
	for attempt := 0; ; attempt++ {
		err := ing.customers.Save(ctx, c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= saveConflictRetries {
			return fmt.Errorf("saving customer %s: %w", c.PlatformID, err)
		}
		fresh, ferr := ing.customers.FindByPlatformID(ctx, r.shopID, c.PlatformID)
		if ferr != nil && !errors.Is(ferr, shared.ErrNotFound) {
			return fmt.Errorf("reloading customer %s: %w", c.PlatformID, ferr)
		}
		if fresh != nil {
			c.ID = fresh.ID
			c.CreatedAt = fresh.CreatedAt
			c.Version = fresh.Version
		}
	}
}

func (ing *Ingestor) saveOrder(ctx context.Context, r *run, o *store.Order) error {
	for attempt := 0; ; attempt++ {
		err := ing.orders.Save(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= saveConflictRetries {
			return fmt.Errorf("saving order %s: %w", o.PlatformID, err)
		}
		fresh, ferr := ing.orders.FindByPlatformID(ctx, r.shopID, o.PlatformID)
		if ferr != nil && !errors.Is(ferr, shared.ErrNotFound) {
			return fmt.Errorf("reloading order %s: %w", o.PlatformID, ferr)
		}
		if fresh != nil {
			o.ID = fresh.ID
			o.CreatedAt = fresh.CreatedAt
			o.Version = fresh.Version
		}
	}
}

func (ing *Ingestor) saveProduct(ctx context.Context, r *run, p *store.Product) error {
	for attempt := 0; ; attempt++ {
		err := ing.products.Save(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= saveConflictRetries {
			return fmt.Errorf("saving product %s: %w", p.PlatformID, err)
		}
		fresh, ferr := ing.products.FindByPlatformID(ctx, r.shopID, p.PlatformID)
		if ferr != nil && !errors.Is(ferr, shared.ErrNotFound) {
			return fmt.Errorf("reloading product %s: %w", p.PlatformID, ferr)
		}
		if fresh != nil {
			p.ID = fresh.ID
			p.CreatedAt = fresh.CreatedAt
			p.Version = fresh.Version
		}
	}
}
