// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderpipeline/internal/service/order/domain"
)

// OrderModel 是订单的数据库模型，行项目序列化为 JSON 列。
type OrderModel struct {
	OrderID         string `gorm:"primaryKey;column:order_id"`
	CustomerID      string `gorm:"column:customer_id"`
	CustomerEmail   string `gorm:"column:customer_email"`
	Items           string `gorm:"column:items;type:json"`
	TotalAmount     float64
	ShippingAddress string
	Status          string
	FailureReason   string
	RetryCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (OrderModel) TableName() string { return "orders" }

// InventoryModel 是商品库存的数据库模型。
type InventoryModel struct {
	ProductID         string `gorm:"primaryKey;column:product_id"`
	AvailableQuantity int
	ReservedQuantity  int
}

func (InventoryModel) TableName() string { return "product_inventory" }

// NewMySQL 建立 GORM 连接并迁移表结构。
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mysql connection")
	}
	if err := db.AutoMigrate(&OrderModel{}, &InventoryModel{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate schema")
	}
	return db, nil
}

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model, err := toOrderModel(order)
	if err != nil {
		return err
	}
	// 创建或整体更新：订单ID是稳定主键
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(model).Error
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("order_id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainOrder(&model)
}

// GormInventoryRepository 是 domain.InventoryRepository 的 GORM 实现。
// 按商品的互斥由调用方的 ResourceLocker 保证，这里只做读写。
type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

func (r *GormInventoryRepository) FindByProductID(ctx context.Context, productID string) (*domain.ProductInventory, error) {
	var model InventoryModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.ProductInventory{
		ProductID:         model.ProductID,
		AvailableQuantity: model.AvailableQuantity,
		ReservedQuantity:  model.ReservedQuantity,
	}, nil
}

func (r *GormInventoryRepository) Save(ctx context.Context, inventory *domain.ProductInventory) error {
	model := InventoryModel{
		ProductID:         inventory.ProductID,
		AvailableQuantity: inventory.AvailableQuantity,
		ReservedQuantity:  inventory.ReservedQuantity,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error
}

func toOrderModel(order *domain.Order) (*OrderModel, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal order items")
	}
	return &OrderModel{
		OrderID:         order.OrderID,
		CustomerID:      order.CustomerID,
		CustomerEmail:   order.CustomerEmail,
		Items:           string(items),
		TotalAmount:     order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
		Status:          string(order.Status),
		FailureReason:   order.FailureReason,
		RetryCount:      order.RetryCount,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}, nil
}

func toDomainOrder(model *OrderModel) (*domain.Order, error) {
	var items []domain.OrderItem
	if model.Items != "" {
		if err := json.Unmarshal([]byte(model.Items), &items); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal order items")
		}
	}
	return &domain.Order{
		OrderID:         model.OrderID,
		CustomerID:      model.CustomerID,
		CustomerEmail:   model.CustomerEmail,
		Items:           items,
		TotalAmount:     model.TotalAmount,
		ShippingAddress: model.ShippingAddress,
		Status:          domain.OrderStatus(model.Status),
		FailureReason:   model.FailureReason,
		RetryCount:      model.RetryCount,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}, nil
}
