package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-core/pkg/db/models"
)

// Catalog is a seeded tenant with one default warehouse.
type Catalog struct {
	TenantID    uuid.UUID
	WarehouseID uuid.UUID
}

// SeedCatalog creates a tenant and its default warehouse.
func SeedCatalog(t testing.TB, conn *gorm.DB) Catalog {
	t.Helper()
	tenant := models.Tenant{Name: "tenant-" + uuid.NewString()[:8]}
	if err := conn.Create(&tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	wh := models.Warehouse{TenantID: tenant.ID, Name: "main", IsDefault: true}
	if err := conn.Create(&wh).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	return Catalog{TenantID: tenant.ID, WarehouseID: wh.ID}
}

// SeedProduct creates a published product with stock in the default warehouse.
func SeedProduct(t testing.TB, conn *gorm.DB, cat Catalog, priceCents, stock int64) models.Product {
	t.Helper()
	product := models.Product{
		TenantID:    cat.TenantID,
		SKU:         "sku-" + uuid.NewString()[:8],
		Name:        "product",
		PriceCents:  priceCents,
		IsPublished: true,
		Stock:       stock,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	SeedLevel(t, conn, cat.TenantID, product.ID, cat.WarehouseID, stock)
	return product
}

// SeedLevel writes the stock counter for one product/warehouse pair.
func SeedLevel(t testing.TB, conn *gorm.DB, tenantID, productID, warehouseID uuid.UUID, onHand int64) {
	t.Helper()
	level := models.StockLevel{
		TenantID:    tenantID,
		ProductID:   productID,
		WarehouseID: warehouseID,
		OnHand:      onHand,
	}
	if err := conn.Create(&level).Error; err != nil {
		t.Fatalf("seed stock level: %v", err)
	}
}
