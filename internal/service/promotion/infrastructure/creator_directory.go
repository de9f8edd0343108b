package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// creatorRow 是 users 表中展示创建人所需的两列，users 由账号服务维护
type creatorRow struct {
	ID       int64
	Username string
}

// GormCreatorDirectory 实现了 domain.CreatorDirectory 接口。
type GormCreatorDirectory struct {
	db *gorm.DB
}

func NewGormCreatorDirectory(db *gorm.DB) *GormCreatorDirectory {
	return &GormCreatorDirectory{db: db}
}

func (r *GormCreatorDirectory) Usernames(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []creatorRow
	if err := r.db.WithContext(ctx).Table("users").Select("id", "username").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load discount creators")
	}
	for _, row := range rows {
		out[row.ID] = row.Username
	}
	return out, nil
}
