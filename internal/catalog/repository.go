// Package catalog is the tenant-scoped store of products and fabric variants.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrInvalid  = errors.New("invalid catalog entry")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Reader is the read side every storefront request goes through.
type Reader interface {
	ListProducts(ctx context.Context, tenantID tenant.ID, filter ProductFilter) ([]Product, error)
	GetProductBySlug(ctx context.Context, tenantID tenant.ID, slug string) (Product, error)
	GetProductByID(ctx context.Context, tenantID tenant.ID, id string) (Product, error)
	ListFabrics(ctx context.Context, tenantID tenant.ID, color string) ([]FabricVariant, error)
	GetFabricByCode(ctx context.Context, tenantID tenant.ID, code string) (FabricVariant, error)
}

// Writer is the admin side. The tenant on the stored row is always tenantID,
// whatever the TenantID field of the argument says.
type Writer interface {
	CreateProduct(ctx context.Context, tenantID tenant.ID, p Product) (Product, error)
	UpdateProduct(ctx context.Context, tenantID tenant.ID, p Product) (Product, error)
	DeleteProduct(ctx context.Context, tenantID tenant.ID, id string) error
	CreateFabric(ctx context.Context, tenantID tenant.ID, f FabricVariant) (FabricVariant, error)
	UpdateFabric(ctx context.Context, tenantID tenant.ID, f FabricVariant) (FabricVariant, error)
}

type Repository interface {
	Reader
	Writer
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const productColumns = `id, tenant_id, slug, name, base_price::text, category, has_variant_selection, images, fabric_codes, created_at, updated_at`

const fabricColumns = `code, tenant_id, label, color, upcharge::text, swatch_image, image_overrides`

func (r *PostgresRepository) ListProducts(ctx context.Context, tenantID tenant.ID, filter ProductFilter) ([]Product, error) {
	if tenantID == "" {
		return nil, tenant.ErrUnresolved
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id=$1`
	args := []any{string(tenantID)}
	if filter.Category != "" {
		query += ` AND category=$2`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		if p.TenantID != tenantID {
			continue
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return products, nil
}

func (r *PostgresRepository) GetProductBySlug(ctx context.Context, tenantID tenant.ID, slug string) (Product, error) {
	return r.getProduct(ctx, tenantID, `slug`, slug)
}

func (r *PostgresRepository) GetProductByID(ctx context.Context, tenantID tenant.ID, id string) (Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Product{}, ErrNotFound
	}
	return r.getProduct(ctx, tenantID, `id`, id)
}

func (r *PostgresRepository) getProduct(ctx context.Context, tenantID tenant.ID, column, value string) (Product, error) {
	if tenantID == "" {
		return Product{}, tenant.ErrUnresolved
	}

	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND `+column+`=$2`,
		string(tenantID), value,
	)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	if p.TenantID != tenantID {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *PostgresRepository) ListFabrics(ctx context.Context, tenantID tenant.ID, color string) ([]FabricVariant, error) {
	if tenantID == "" {
		return nil, tenant.ErrUnresolved
	}

	query := `SELECT ` + fabricColumns + ` FROM fabrics WHERE tenant_id=$1`
	args := []any{string(tenantID)}
	if color != "" {
		query += ` AND lower(color)=lower($2)`
		args = append(args, color)
	}
	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fabrics: %w", err)
	}
	defer rows.Close()

	fabrics := []FabricVariant{}
	for rows.Next() {
		f, err := scanFabric(rows)
		if err != nil {
			return nil, err
		}
		if f.TenantID != tenantID {
			continue
		}
		fabrics = append(fabrics, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return fabrics, nil
}

func (r *PostgresRepository) GetFabricByCode(ctx context.Context, tenantID tenant.ID, code string) (FabricVariant, error) {
	if tenantID == "" {
		return FabricVariant{}, tenant.ErrUnresolved
	}

	row := r.pool.QueryRow(ctx,
		`SELECT `+fabricColumns+` FROM fabrics WHERE tenant_id=$1 AND code=$2`,
		string(tenantID), code,
	)
	f, err := scanFabric(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FabricVariant{}, ErrNotFound
		}
		return FabricVariant{}, err
	}
	if f.TenantID != tenantID {
		return FabricVariant{}, ErrNotFound
	}
	return f, nil
}

func (r *PostgresRepository) CreateProduct(ctx context.Context, tenantID tenant.ID, p Product) (Product, error) {
	if tenantID == "" {
		return Product{}, tenant.ErrUnresolved
	}
	if err := p.validate(); err != nil {
		return Product{}, err
	}
	if err := r.checkFabrics(ctx, tenantID, p.FabricCodes); err != nil {
		return Product{}, err
	}

	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.TenantID = tenantID
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, tenant_id, slug, name, base_price, category, has_variant_selection, images, fabric_codes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, string(tenantID), p.Slug, p.Name, p.BasePrice.String(), p.Category, p.HasVariantSelection,
		nonNil(p.Images), nonNil(p.FabricCodes), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Product{}, mapWriteErr("insert product", err)
	}
	return p, nil
}

func (r *PostgresRepository) UpdateProduct(ctx context.Context, tenantID tenant.ID, p Product) (Product, error) {
	if tenantID == "" {
		return Product{}, tenant.ErrUnresolved
	}
	if err := p.validate(); err != nil {
		return Product{}, err
	}
	if err := r.checkFabrics(ctx, tenantID, p.FabricCodes); err != nil {
		return Product{}, err
	}

	p.TenantID = tenantID
	p.UpdatedAt = time.Now().UTC()

	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET slug=$3, name=$4, base_price=$5, category=$6, has_variant_selection=$7, images=$8, fabric_codes=$9, updated_at=$10
		WHERE tenant_id=$1 AND id=$2
	`, string(tenantID), p.ID, p.Slug, p.Name, p.BasePrice.String(), p.Category, p.HasVariantSelection,
		nonNil(p.Images), nonNil(p.FabricCodes), p.UpdatedAt)
	if err != nil {
		return Product{}, mapWriteErr("update product", err)
	}
	if tag.RowsAffected() == 0 {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// DeleteProduct removes a product. Carts that already hold it keep their
// captured line; nothing here checks for them.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, tenantID tenant.ID, id string) error {
	if tenantID == "" {
		return tenant.ErrUnresolved
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE tenant_id=$1 AND id=$2`, string(tenantID), id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateFabric(ctx context.Context, tenantID tenant.ID, f FabricVariant) (FabricVariant, error) {
	if tenantID == "" {
		return FabricVariant{}, tenant.ErrUnresolved
	}
	if err := f.validate(); err != nil {
		return FabricVariant{}, err
	}
	f.TenantID = tenantID

	_, err := r.pool.Exec(ctx, `
		INSERT INTO fabrics (tenant_id, code, label, color, upcharge, swatch_image, image_overrides)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, string(tenantID), f.Code, f.Label, f.Color, f.Upcharge.String(), f.SwatchImage, nonNil(f.ImageOverrides))
	if err != nil {
		return FabricVariant{}, mapWriteErr("insert fabric", err)
	}
	return f, nil
}

func (r *PostgresRepository) UpdateFabric(ctx context.Context, tenantID tenant.ID, f FabricVariant) (FabricVariant, error) {
	if tenantID == "" {
		return FabricVariant{}, tenant.ErrUnresolved
	}
	if err := f.validate(); err != nil {
		return FabricVariant{}, err
	}
	f.TenantID = tenantID

	tag, err := r.pool.Exec(ctx, `
		UPDATE fabrics
		SET label=$3, color=$4, upcharge=$5, swatch_image=$6, image_overrides=$7, updated_at=now()
		WHERE tenant_id=$1 AND code=$2
	`, string(tenantID), f.Code, f.Label, f.Color, f.Upcharge.String(), f.SwatchImage, nonNil(f.ImageOverrides))
	if err != nil {
		return FabricVariant{}, mapWriteErr("update fabric", err)
	}
	if tag.RowsAffected() == 0 {
		return FabricVariant{}, ErrNotFound
	}
	return f, nil
}

// checkFabrics makes sure every referenced fabric exists for this tenant, so a
// product can never point at another shop's fabric library.
func (r *PostgresRepository) checkFabrics(ctx context.Context, tenantID tenant.ID, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	var found int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM fabrics WHERE tenant_id=$1 AND code = ANY($2)`,
		string(tenantID), codes,
	).Scan(&found)
	if err != nil {
		return fmt.Errorf("count fabrics: %w", err)
	}
	if found != len(uniq(codes)) {
		return fmt.Errorf("%w: product references unknown fabric", ErrInvalid)
	}
	return nil
}

func (p Product) validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case strings.TrimSpace(p.Slug) == "":
		return fmt.Errorf("%w: slug is required", ErrInvalid)
	case p.BasePrice.IsNegative():
		return fmt.Errorf("%w: base price must not be negative", ErrInvalid)
	case !p.HasVariantSelection && len(p.FabricCodes) > 0:
		return fmt.Errorf("%w: fabrics given for a product without variant selection", ErrInvalid)
	case p.HasVariantSelection && len(p.FabricCodes) == 0:
		return fmt.Errorf("%w: variant selection needs at least one fabric", ErrInvalid)
	}
	return nil
}

func (f FabricVariant) validate() error {
	switch {
	case strings.TrimSpace(f.Code) == "":
		return fmt.Errorf("%w: code is required", ErrInvalid)
	case f.Code == DefaultVariantCode:
		return fmt.Errorf("%w: code %q is reserved", ErrInvalid, DefaultVariantCode)
	case strings.TrimSpace(f.Label) == "":
		return fmt.Errorf("%w: label is required", ErrInvalid)
	case f.Upcharge.IsNegative():
		return fmt.Errorf("%w: upcharge must not be negative", ErrInvalid)
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p        Product
		tenantID string
		price    string
	)
	err := row.Scan(&p.ID, &tenantID, &p.Slug, &p.Name, &price, &p.Category, &p.HasVariantSelection,
		&p.Images, &p.FabricCodes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("scan product: %w", err)
	}
	p.TenantID = tenant.ID(tenantID)
	if p.BasePrice, err = decimal.NewFromString(price); err != nil {
		return Product{}, fmt.Errorf("parse base price %q: %w", price, err)
	}
	return p, nil
}

func scanFabric(row pgx.Row) (FabricVariant, error) {
	var (
		f        FabricVariant
		tenantID string
		upcharge string
	)
	err := row.Scan(&f.Code, &tenantID, &f.Label, &f.Color, &upcharge, &f.SwatchImage, &f.ImageOverrides)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FabricVariant{}, err
		}
		return FabricVariant{}, fmt.Errorf("scan fabric: %w", err)
	}
	f.TenantID = tenant.ID(tenantID)
	if f.Upcharge, err = decimal.NewFromString(upcharge); err != nil {
		return FabricVariant{}, fmt.Errorf("parse upcharge %q: %w", upcharge, err)
	}
	return f, nil
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func uniq(s []string) map[string]struct{} {
	m := make(map[string]struct{}, len(s))
	for _, v := range s {
		m[v] = struct{}{}
	}
	return m
}
