package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/soamart/storefront/internal/cache"
	"github.com/soamart/storefront/internal/models"
)

const (
	productTTL    = 30 * time.Minute
	listingTTL    = 5 * time.Minute
	categoriesTTL = time.Hour
)

// Service is a cache-aside layer over the catalog repo. Reads consult Redis
// first; every write deletes the touched product key and the whole listing
// prefix. The cache is never load-bearing: a nil Cache just means every read
// hits the database.
type Service struct {
	Repo  *GormRepo
	Cache *cache.Cache
}

type ProductPage struct {
	Total int64            `json:"total"`
	Items []models.Product `json:"items"`
}

func listingKey(p ListParams) string {
	return fmt.Sprintf("products:%d:%d:%s:%d", p.Offset, p.Limit, p.Search, p.CategoryID)
}

func productKey(id uint) string {
	return fmt.Sprintf("product:%d", id)
}

func (s *Service) Products(ctx context.Context, p ListParams) (*ProductPage, error) {
	key := listingKey(p)

	var page ProductPage
	if !p.IncludeInactive && s.Cache.Get(ctx, key, &page) {
		return &page, nil
	}

	total, items, err := s.Repo.Products(ctx, p)
	if err != nil {
		return nil, err
	}
	page = ProductPage{Total: total, Items: items}

	if !p.IncludeInactive {
		s.Cache.Set(ctx, key, page, listingTTL)
	}
	return &page, nil
}

func (s *Service) Product(ctx context.Context, id uint) (*models.Product, error) {
	key := productKey(id)

	var product models.Product
	if s.Cache.Get(ctx, key, &product) {
		return &product, nil
	}

	p, err := s.Repo.Product(ctx, id)
	if err != nil {
		return nil, err
	}

	s.Cache.Set(ctx, key, p, productTTL)
	return p, nil
}

func (s *Service) CreateProduct(ctx context.Context, prod *models.Product) error {
	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		return err
	}
	s.invalidateProduct(ctx, prod.ID)
	return nil
}

func (s *Service) PatchProduct(ctx context.Context, req PatchProductRequest, id uint) (*models.Product, error) {
	prod, err := s.Repo.PatchProduct(ctx, req, id)
	if err != nil {
		return nil, err
	}
	s.invalidateProduct(ctx, id)
	return prod, nil
}

func (s *Service) DeactivateProduct(ctx context.Context, id uint) error {
	if err := s.Repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateProduct(ctx, id)
	return nil
}

func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if s.Cache.Get(ctx, "categories:all", &categories) {
		return categories, nil
	}

	categories, err := s.Repo.Categories(ctx)
	if err != nil {
		return nil, err
	}

	s.Cache.Set(ctx, "categories:all", categories, categoriesTTL)
	return categories, nil
}

func (s *Service) CreateCategory(ctx context.Context, cat *models.Category) error {
	if err := s.Repo.CreateCategory(ctx, cat); err != nil {
		return err
	}
	s.Cache.Delete(ctx, "categories:all")
	return nil
}

func (s *Service) invalidateProduct(ctx context.Context, id uint) {
	s.Cache.Delete(ctx, productKey(id))
	s.Cache.DeletePrefix(ctx, "products:")
}
