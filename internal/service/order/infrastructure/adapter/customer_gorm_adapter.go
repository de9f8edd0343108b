package adapter

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"marketplace/internal/service/order/domain"
)

// UserModel 是身份服务 users 表的只读视图
type UserModel struct {
	ID          int64  `gorm:"primaryKey"`
	Username    string `gorm:"size:64;not null"`
	Email       string `gorm:"size:255"`
	PhoneNumber string `gorm:"size:32"`
	Address     string `gorm:"type:text"`
	Role        string `gorm:"size:16"`
}

func (UserModel) TableName() string {
	return "users"
}

// CustomerGormAdapter 实现了 port.CustomerDirectory 接口。
type CustomerGormAdapter struct {
	db *gorm.DB
}

func NewCustomerGormAdapter(db *gorm.DB) *CustomerGormAdapter {
	return &CustomerGormAdapter{db: db}
}

func (a *CustomerGormAdapter) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var u UserModel
	if err := a.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrCustomerNotFound, "customer %d", id)
		}
		return nil, errors.Wrapf(err, "load customer %d", id)
	}
	return &domain.Customer{
		ID:      u.ID,
		Name:    u.Username,
		Email:   u.Email,
		Phone:   u.PhoneNumber,
		Address: u.Address,
	}, nil
}
