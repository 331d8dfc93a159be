// Package postgres implements the repository ports on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	repositories "github.com/velora-shop/api/internal/repositories"
)

// querier is the subset of pgx shared by pool and transaction handles. Every
// repository method goes through it so transactional and plain calls share
// one code path.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txContextKey struct{}

// withTx returns a context carrying the open transaction.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// txFromContext extracts the ambient transaction, if any.
func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// DB owns the connection pool and hands out repository implementations bound
// to it.
type DB struct {
	pool *pgxpool.Pool
}

var _ repositories.UnitOfWork = (*DB)(nil)

// Open parses the DSN, builds the pool and verifies connectivity.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Pool exposes the underlying pool for readiness probes and migrations.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

// Close releases the connection pool.
func (db *DB) Close(ctx context.Context) error {
	db.pool.Close()
	return nil
}

// RunInTx executes fn inside a transaction. When the context already carries
// an open transaction fn joins it; commit and rollback then stay with the
// outermost caller.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return repositories.NewError("postgres.RunInTx", repositories.ErrorUnavailable, "begin transaction", err)
	}

	txCtx := withTx(ctx, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return repositories.NewError("postgres.RunInTx", repositories.ErrorUnavailable, "commit transaction", err)
	}
	return nil
}

// conn resolves the handle repository calls should use: the ambient
// transaction when one is open, the pool otherwise.
func (db *DB) conn(ctx context.Context) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db.pool
}

// Registry binds all repository implementations to one DB.
type Registry struct {
	db *DB

	products      *ProductRepository
	campaigns     *CampaignRepository
	discountCodes *DiscountCodeRepository
	delivery      *DeliveryMethodRepository
	orders        *OrderRepository
	invoices      *InvoiceRepository
	transactions  *TransactionRepository
	campaignSales *CampaignSaleRepository
	gateways      *GatewayRepository
	pendingOrders *PendingOrderStore
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repository registry around an open DB.
func NewRegistry(db *DB) (*Registry, error) {
	if db == nil {
		return nil, errors.New("postgres: db is required")
	}
	return &Registry{
		db:            db,
		products:      &ProductRepository{db: db},
		campaigns:     &CampaignRepository{db: db},
		discountCodes: &DiscountCodeRepository{db: db},
		delivery:      &DeliveryMethodRepository{db: db},
		orders:        &OrderRepository{db: db},
		invoices:      &InvoiceRepository{db: db},
		transactions:  &TransactionRepository{db: db},
		campaignSales: &CampaignSaleRepository{db: db},
		gateways:      &GatewayRepository{db: db},
		pendingOrders: &PendingOrderStore{db: db},
	}, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.db.Close(ctx) }

func (r *Registry) Products() repositories.ProductRepository             { return r.products }
func (r *Registry) Campaigns() repositories.CampaignRepository           { return r.campaigns }
func (r *Registry) DiscountCodes() repositories.DiscountCodeRepository   { return r.discountCodes }
func (r *Registry) DeliveryMethods() repositories.DeliveryMethodRepository {
	return r.delivery
}
func (r *Registry) Orders() repositories.OrderRepository             { return r.orders }
func (r *Registry) Invoices() repositories.InvoiceRepository         { return r.invoices }
func (r *Registry) Transactions() repositories.TransactionRepository { return r.transactions }
func (r *Registry) CampaignSales() repositories.CampaignSaleRepository {
	return r.campaignSales
}
func (r *Registry) Gateways() repositories.GatewayRepository    { return r.gateways }
func (r *Registry) PendingOrders() repositories.PendingOrderStore { return r.pendingOrders }

// RunInTx delegates to the underlying DB.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.RunInTx(ctx, fn)
}

// wrapQueryErr categorises a pgx error for the service layer.
func wrapQueryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repositories.NewError(op, repositories.ErrorNotFound, "row not found", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23514", "40001":
			return repositories.NewError(op, repositories.ErrorConflict, pgErr.Message, err)
		}
	}
	return repositories.NewError(op, repositories.ErrorUnavailable, "query failed", err)
}
