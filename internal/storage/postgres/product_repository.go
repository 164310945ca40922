package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var productSortColumns = map[string]string{
	domain.ProductSortName:           "name",
	domain.ProductSortPrice:          "price",
	domain.ProductSortCreatedAt:      "created_at",
	domain.ProductSortUpdatedAt:      "updated_at",
	domain.ProductSortInventoryCount: "inventory_count",
}

const productColumns = `id, sku, name, description, price, currency, inventory_count, status, version, created_at, updated_at`

type productRow struct {
	ID             string          `db:"id"`
	SKU            string          `db:"sku"`
	Name           string          `db:"name"`
	Description    string          `db:"description"`
	Price          decimal.Decimal `db:"price"`
	Currency       string          `db:"currency"`
	InventoryCount int             `db:"inventory_count"`
	Status         int             `db:"status"`
	Version        int64           `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func newProductRow(p domain.Product) productRow {
	return productRow{
		ID:             p.ID,
		SKU:            p.SKU,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Currency:       p.CurrencyOrDefault(),
		InventoryCount: p.InventoryCount,
		Status:         int(p.Status),
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (row productRow) toDomain() domain.Product {
	return domain.Product{
		ID:             row.ID,
		SKU:            row.SKU,
		Name:           row.Name,
		Description:    row.Description,
		Price:          row.Price,
		Currency:       row.Currency,
		InventoryCount: row.InventoryCount,
		Status:         domain.ProductStatus(row.Status),
		Version:        row.Version,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type productRepository struct {
	db *sqlx.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DBX()}
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :sku, :name, :description, :price, :currency, :inventory_count, :status, :version, :created_at, :updated_at)
	`, newProductRow(product))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSKUConflict
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	if !isUUID(id) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return r.getBy(ctx, "id", id)
}

func (r *productRepository) GetBySKU(ctx context.Context, sku string) (domain.Product, error) {
	return r.getBy(ctx, "sku", sku)
}

func (r *productRepository) getBy(ctx context.Context, column, value string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var row productRow
	err := r.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE `+column+` = $1`, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product by %s: %w", column, err)
	}
	return row.toDomain(), nil
}

// Save обновляет товар целиком при совпадении версии.
func (r *productRepository) Save(ctx context.Context, product domain.Product) error {
	if !isUUID(product.ID) {
		return domain.ErrProductNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.NamedExecContext(ctx, `
		UPDATE products
		SET sku = :sku,
		    name = :name,
		    description = :description,
		    price = :price,
		    currency = :currency,
		    inventory_count = :inventory_count,
		    status = :status,
		    version = version + 1,
		    updated_at = :updated_at
		WHERE id = :id
		  AND version = :version
	`, newProductRow(product))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSKUConflict
		}
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := r.Get(ctx, product.ID); err != nil {
			return err
		}
		return domain.ErrProductVersionConflict
	}
	return nil
}

// AdjustInventory выполняет условный UPDATE: проверка и запись происходят одним оператором.
func (r *productRepository) AdjustInventory(ctx context.Context, id string, delta int) (domain.Product, error) {
	if !isUUID(id) {
		return domain.Product{}, domain.ErrProductNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var row productRow
	err := r.db.GetContext(ctx, &row, `
		UPDATE products
		SET inventory_count = inventory_count + $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND inventory_count + $2 >= 0
		RETURNING `+productColumns, id, delta)
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("adjust inventory: %w", err)
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return domain.Product{}, getErr
	}
	return current, fmt.Errorf("%w: current inventory %d, requested change %d",
		domain.ErrInsufficientInventory, current.InventoryCount, delta)
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return domain.ErrProductNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) List(ctx context.Context, query domain.ProductQuery) (domain.ProductPage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	column, ok := productSortColumns[query.SortBy]
	if !ok {
		return domain.ProductPage{}, fmt.Errorf("%w: unsupported sortBy %q", domain.ErrInvalidQuery, query.SortBy)
	}
	direction := "DESC"
	if query.SortOrder == domain.SortAsc {
		direction = "ASC"
	}

	var status sql.NullInt16
	if query.Status != nil {
		status = sql.NullInt16{Int16: int16(*query.Status), Valid: true}
	}
	where := `WHERE ($1::smallint IS NULL OR status = $1)
		AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')`
	args := []any{status, query.Search}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products `+where, args...); err != nil {
		return domain.ProductPage{}, fmt.Errorf("count products: %w", err)
	}

	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, fmt.Sprintf(
		`SELECT %s FROM products %s ORDER BY %s %s, id %s LIMIT $3 OFFSET $4`,
		productColumns, where, column, direction, direction,
	), append(args, query.Limit, query.Offset())...); err != nil {
		return domain.ProductPage{}, fmt.Errorf("list products: %w", err)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return domain.ProductPage{Data: products, Meta: domain.NewPageMeta(query.Pagination, total)}, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
