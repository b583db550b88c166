package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

// ErrUnavailable is returned when a product or fabric cannot be added.
// The cart is left as it was.
var ErrUnavailable = errors.New("item unavailable")

type Store interface {
	// Load returns an empty cart when none is stored under cartID.
	Load(ctx context.Context, tenantID tenant.ID, cartID string) (Cart, error)
	Save(ctx context.Context, c Cart) error
	Delete(ctx context.Context, tenantID tenant.ID, cartID string) error
}

type Service struct {
	catalog catalog.Reader
	store   Store
	now     func() time.Time
}

func NewService(products catalog.Reader, store Store) *Service {
	return &Service{catalog: products, store: store, now: time.Now}
}

func (s *Service) Get(ctx context.Context, tenantID tenant.ID, cartID string) (Cart, error) {
	if tenantID == "" {
		return Cart{}, tenant.ErrUnresolved
	}
	if cartID == "" {
		return New(tenantID, ""), nil
	}
	return s.store.Load(ctx, tenantID, cartID)
}

// AddItem prices the product and variant against the tenant's catalog and adds
// the line. An empty cartID starts a new cart; the returned Cart carries its id.
func (s *Service) AddItem(ctx context.Context, tenantID tenant.ID, cartID, productID, variantCode string, quantity int) (Cart, error) {
	if tenantID == "" {
		return Cart{}, tenant.ErrUnresolved
	}
	if quantity <= 0 {
		return Cart{}, ErrInvalidQuantity
	}

	line, err := s.priceLine(ctx, tenantID, productID, variantCode)
	if err != nil {
		return Cart{}, err
	}
	line.Quantity = quantity

	if cartID == "" {
		cartID = uuid.NewString()
	}
	c, err := s.store.Load(ctx, tenantID, cartID)
	if err != nil {
		return Cart{}, err
	}
	if c, err = c.AddLine(line); err != nil {
		return Cart{}, err
	}
	return c, s.save(ctx, c)
}

func (s *Service) UpdateQuantity(ctx context.Context, tenantID tenant.ID, cartID, productID, variantCode string, quantity int) (Cart, error) {
	c, err := s.Get(ctx, tenantID, cartID)
	if err != nil {
		return Cart{}, err
	}
	if c, err = c.UpdateQuantity(productID, normalizeVariant(variantCode), quantity); err != nil {
		return Cart{}, err
	}
	return c, s.save(ctx, c)
}

func (s *Service) RemoveItem(ctx context.Context, tenantID tenant.ID, cartID, productID, variantCode string) (Cart, error) {
	c, err := s.Get(ctx, tenantID, cartID)
	if err != nil {
		return Cart{}, err
	}
	c = c.RemoveLine(productID, normalizeVariant(variantCode))
	return c, s.save(ctx, c)
}

func (s *Service) Clear(ctx context.Context, tenantID tenant.ID, cartID string) error {
	if tenantID == "" {
		return tenant.ErrUnresolved
	}
	if cartID == "" {
		return nil
	}
	return s.store.Delete(ctx, tenantID, cartID)
}

func (s *Service) save(ctx context.Context, c Cart) error {
	if c.ID == "" {
		return nil
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, c); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Service) priceLine(ctx context.Context, tenantID tenant.ID, productID, variantCode string) (Line, error) {
	p, err := s.catalog.GetProductByID(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Line{}, fmt.Errorf("%w: product %s", ErrUnavailable, productID)
		}
		return Line{}, err
	}

	var v catalog.FabricVariant
	variantCode = normalizeVariant(variantCode)
	switch {
	case !p.HasVariantSelection:
		if variantCode != catalog.DefaultVariantCode {
			return Line{}, fmt.Errorf("%w: product %s has no variant %s", ErrUnavailable, p.Slug, variantCode)
		}
		v = p.DefaultVariant()
	case !p.OffersFabric(variantCode):
		return Line{}, fmt.Errorf("%w: product %s has no variant %s", ErrUnavailable, p.Slug, variantCode)
	default:
		v, err = s.catalog.GetFabricByCode(ctx, tenantID, variantCode)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return Line{}, fmt.Errorf("%w: fabric %s", ErrUnavailable, variantCode)
			}
			return Line{}, err
		}
	}

	unit, err := pricing.UnitPrice(p, v)
	if err != nil {
		return Line{}, err
	}
	return Line{
		ProductID:    p.ID,
		VariantCode:  v.Code,
		UnitPrice:    unit,
		Name:         p.Name,
		VariantLabel: v.Label,
		Image:        p.DisplayImage(v),
	}, nil
}

func normalizeVariant(code string) string {
	if code == "" {
		return catalog.DefaultVariantCode
	}
	return code
}
