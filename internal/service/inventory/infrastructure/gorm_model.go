package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"

	"marketplace/internal/service/inventory/domain"
)

// ProductModel 对应数据库中的 products 表，由目录服务维护，这里只读写库存
type ProductModel struct {
	ID         int64           `gorm:"primaryKey"`
	Name       string          `gorm:"size:255;not null"`
	Price      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Stock      int             `gorm:"not null;default:0"`
	Status     string          `gorm:"size:16;not null;index"`
	SellerID   int64           `gorm:"index"`
	CategoryID int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "products"
}

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:         m.ID,
		Name:       m.Name,
		Price:      m.Price,
		Stock:      m.Stock,
		Status:     domain.ProductStatus(m.Status),
		SellerID:   m.SellerID,
		CategoryID: m.CategoryID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromDomainProduct(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Stock:      p.Stock,
		Status:     string(p.Status),
		SellerID:   p.SellerID,
		CategoryID: p.CategoryID,
	}
}

func reservationOf(p *domain.Product, qty int) domain.Reservation {
	return domain.Reservation{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
		SellerID:  p.SellerID,
	}
}
