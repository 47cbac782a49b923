package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/partsdesk/internal/models"
)

// ListOrders returns newest orders first with their customer and lines.
func (r *GormRepo) ListOrders(ctx context.Context, offset, limit int) (int64, []models.SalesOrder, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.SalesOrder{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	orders := make([]models.SalesOrder, 0, limit)
	err := r.DB.WithContext(ctx).
		Preload("Customer").
		Preload("Items").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (r *GormRepo) GetStockItem(ctx context.Context, id uint) (*models.StockItem, error) {
	var item models.StockItem
	if err := r.DB.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) GetCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) StockByIDs(ctx context.Context, ids []uint) ([]models.StockItem, error) {
	var items []models.StockItem
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// EachStockBatch walks the whole stock table in id order.
func (r *GormRepo) EachStockBatch(ctx context.Context, size int, fn func([]models.StockItem) error) error {
	var batch []models.StockItem
	res := r.DB.WithContext(ctx).FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	return res.Error
}
