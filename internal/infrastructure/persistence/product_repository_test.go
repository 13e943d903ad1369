package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/catalogd/backend/internal/domain/catalog"
	"github.com/catalogd/backend/internal/domain/shared"
)

// newMockProductRepository creates a GormProductRepository with a mocked SQL connection
func newMockProductRepository(t *testing.T) (*GormProductRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormProductRepository(gormDB), mock, mockDB
}

func setupProductTestDB(t *testing.T) *GormProductRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&catalog.Product{}))

	return NewGormProductRepository(db)
}

func mustNewProduct(t *testing.T, sku, name string) *catalog.Product {
	t.Helper()
	product, err := catalog.NewProduct(sku, name, "")
	require.NoError(t, err)
	return product
}

func TestGormProductRepository_CreateMapsUniqueViolation(t *testing.T) {
	t.Run("postgres duplicate key", func(t *testing.T) {
		repo, mock, mockDB := newMockProductRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`INSERT INTO "products"`).
			WillReturnError(&pq.Error{Code: "23505"})

		product := mustNewProduct(t, "WIDGET-1", "Widget One")
		err := repo.Create(context.Background(), product)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unrelated error passes through", func(t *testing.T) {
		repo, mock, mockDB := newMockProductRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`INSERT INTO "products"`).
			WillReturnError(sql.ErrConnDone)

		product := mustNewProduct(t, "WIDGET-1", "Widget One")
		err := repo.Create(context.Background(), product)
		require.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestGormProductRepository_CreateAndFind(t *testing.T) {
	repo := setupProductTestDB(t)
	ctx := context.Background()

	product := mustNewProduct(t, "Widget-1", "Widget One")
	require.NoError(t, repo.Create(ctx, product))

	t.Run("find by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, "Widget-1", found.SKU)
		assert.Equal(t, "widget-1", found.SKULower)
	})

	t.Run("find by lowered sku", func(t *testing.T) {
		found, err := repo.FindBySKULower(ctx, "widget-1")
		require.NoError(t, err)
		assert.Equal(t, product.ID, found.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = repo.FindBySKULower(ctx, "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("duplicate sku rejected case-insensitively", func(t *testing.T) {
		dup := mustNewProduct(t, "WIDGET-1", "Same SKU Different Case")
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestGormProductRepository_FindBySKULowerIn(t *testing.T) {
	repo := setupProductTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, mustNewProduct(t, "SKU-A", "Product A")))
	require.NoError(t, repo.Create(ctx, mustNewProduct(t, "SKU-B", "Product B")))

	found, err := repo.FindBySKULowerIn(ctx, []string{"sku-a", "sku-b", "sku-missing"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "SKU-A", found["sku-a"].SKU)
	assert.Equal(t, "SKU-B", found["sku-b"].SKU)

	empty, err := repo.FindBySKULowerIn(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormProductRepository_BulkCreate(t *testing.T) {
	repo := setupProductTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, mustNewProduct(t, "SKU-1", "Existing")))

	batch := []*catalog.Product{
		mustNewProduct(t, "sku-1", "Conflicts With Existing"),
		mustNewProduct(t, "SKU-2", "New Product"),
		mustNewProduct(t, "SKU-3", "Another New Product"),
	}
	inserted, err := repo.BulkCreate(ctx, batch, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	count, err := repo.Count(ctx, shared.NewFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// The existing row is untouched by the conflicting insert
	existing, err := repo.FindBySKULower(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, "Existing", existing.Name)

	inserted, err = repo.BulkCreate(ctx, nil, true)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestGormProductRepository_FindAll(t *testing.T) {
	repo := setupProductTestDB(t)
	ctx := context.Background()

	active := mustNewProduct(t, "SKU-1", "Active Product")
	inactive := mustNewProduct(t, "SKU-2", "Inactive Product")
	inactive.Deactivate()
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, inactive))

	t.Run("no filter returns all", func(t *testing.T) {
		products, err := repo.FindAll(ctx, shared.NewFilter())
		require.NoError(t, err)
		assert.Len(t, products, 2)
	})

	t.Run("is_active filter", func(t *testing.T) {
		filter := shared.NewFilter()
		filter.Filters = map[string]any{"is_active": true}
		products, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "SKU-1", products[0].SKU)

		count, err := repo.Count(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("sort field whitelist", func(t *testing.T) {
		filter := shared.NewFilter()
		filter.OrderBy = "sku"
		filter.OrderDir = "asc"
		products, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, "SKU-1", products[0].SKU)

		// Unknown sort fields fall back to created_at instead of
		// reaching the database
		filter.OrderBy = "drop table products"
		_, err = repo.FindAll(ctx, filter)
		require.NoError(t, err)
	})

	t.Run("pagination", func(t *testing.T) {
		filter := shared.NewFilter()
		filter.OrderBy = "sku"
		filter.OrderDir = "asc"
		filter.PageSize = 1
		filter.Page = 2
		products, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "SKU-2", products[0].SKU)
	})
}

func TestGormProductRepository_DeleteByIDs(t *testing.T) {
	repo := setupProductTestDB(t)
	ctx := context.Background()

	p1 := mustNewProduct(t, "SKU-1", "Product One")
	p2 := mustNewProduct(t, "SKU-2", "Product Two")
	require.NoError(t, repo.Create(ctx, p1))
	require.NoError(t, repo.Create(ctx, p2))

	// One of the requested ids does not exist
	deleted, err := repo.DeleteByIDs(ctx, []uuid.UUID{p1.ID, p2.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := repo.Count(ctx, shared.NewFilter())
	require.NoError(t, err)
	assert.Zero(t, count)

	deleted, err = repo.DeleteByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestGormProductRepository_Delete(t *testing.T) {
	repo := setupProductTestDB(t)
	ctx := context.Background()

	product := mustNewProduct(t, "SKU-1", "Product One")
	require.NoError(t, repo.Create(ctx, product))

	require.NoError(t, repo.Delete(ctx, product.ID))
	assert.ErrorIs(t, repo.Delete(ctx, product.ID), shared.ErrNotFound)
}

func TestGormProductRepository_ActiveCounts(t *testing.T) {
	repo := setupProductTestDB(t)
	ctx := context.Background()

	active := mustNewProduct(t, "SKU-1", "Active")
	inactive := mustNewProduct(t, "SKU-2", "Inactive")
	inactive.Deactivate()
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, inactive))

	activeCount, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), activeCount)

	inactiveCount, err := repo.CountInactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inactiveCount)
}

func TestGormProductRepository_Transact(t *testing.T) {
	repo := setupProductTestDB(t)
	ctx := context.Background()

	err := repo.Transact(ctx, func(tx catalog.ProductRepository) error {
		if err := tx.Create(ctx, mustNewProduct(t, "SKU-1", "Inside Tx")); err != nil {
			return err
		}
		return shared.ErrInvalidState
	})
	require.Error(t, err)

	// The rollback undoes the insert
	count, err := repo.Count(ctx, shared.NewFilter())
	require.NoError(t, err)
	assert.Zero(t, count)

	err = repo.Transact(ctx, func(tx catalog.ProductRepository) error {
		return tx.Create(ctx, mustNewProduct(t, "SKU-2", "Committed"))
	})
	require.NoError(t, err)

	count, err = repo.Count(ctx, shared.NewFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
