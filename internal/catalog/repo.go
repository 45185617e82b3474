package catalog

import (
	"context"

	"github.com/soamart/storefront/internal/models"
	"gorm.io/gorm"
)

type GormRepo struct {
	DB *gorm.DB
}

type ListParams struct {
	Offset          int
	Limit           int
	Search          string
	CategoryID      uint
	IncludeInactive bool
}

func (r *GormRepo) Products(ctx context.Context, p ListParams) (int64, []models.Product, error) {
	filtered := func(q *gorm.DB) *gorm.DB {
		if !p.IncludeInactive {
			q = q.Where("active = ?", true)
		}
		if p.Search != "" {
			q = q.Where("name LIKE ?", "%"+p.Search+"%")
		}
		if p.CategoryID != 0 {
			q = q.Where("category_id = ?", p.CategoryID)
		}
		return q
	}

	var total int64
	if err := filtered(r.DB.WithContext(ctx).Model(&models.Product{})).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := filtered(r.DB.WithContext(ctx)).
		Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) Product(ctx context.Context, id uint) (*models.Product, error) {
	product := models.Product{}
	if err := r.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return r.DB.WithContext(ctx).Create(prod).Error
}

type PatchProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *uint    `json:"stock"`
	Active      *bool    `json:"active"`
	CategoryID  *uint    `json:"category_id"`
}

func (r *GormRepo) PatchProduct(ctx context.Context, req PatchProductRequest, id uint) (*models.Product, error) {
	var prod models.Product
	if err := r.DB.WithContext(ctx).First(&prod, id).Error; err != nil {
		return nil, err
	}

	if req.Name != nil {
		prod.Name = *req.Name
	}
	if req.Description != nil {
		prod.Description = *req.Description
	}
	if req.Price != nil {
		prod.Price = *req.Price
	}
	if req.Stock != nil {
		prod.Stock = *req.Stock
	}
	if req.Active != nil {
		prod.Active = *req.Active
	}
	if req.CategoryID != nil {
		prod.CategoryID = req.CategoryID
	}

	if err := r.DB.WithContext(ctx).Save(&prod).Error; err != nil {
		return nil, err
	}
	return &prod, nil
}

// DeactivateProduct is a soft delete. The row stays so historical order
// items keep a valid product reference.
func (r *GormRepo) DeactivateProduct(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.DB.WithContext(ctx).Order("created_at DESC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *GormRepo) CreateCategory(ctx context.Context, cat *models.Category) error {
	return r.DB.WithContext(ctx).Create(cat).Error
}
