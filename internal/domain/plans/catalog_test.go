package plans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&Plan{}))
	return db
}

// newFailingCatalog returns a catalog whose store rejects every query.
func newFailingCatalog(t *testing.T, queries int) *Catalog {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	for i := 0; i < queries; i++ {
		mock.ExpectQuery(`SELECT .* FROM "plans"`).WillReturnError(errors.New("connection refused"))
	}
	return NewCatalog(db, quietLogger())
}

func TestEnsureSeededCreatesCatalog(t *testing.T) {
	c := NewCatalog(newTestDB(t), quietLogger())
	ctx := context.Background()

	require.NoError(t, c.EnsureSeeded(ctx))

	list, src := c.List(ctx)
	assert.Equal(t, SourceStore, src)
	require.Len(t, list, len(DefaultPlans()))
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, list[i-1].SortOrder, list[i].SortOrder)
	}
	assert.Equal(t, "free", list[0].Slug)
}

func TestEnsureSeededIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	c := NewCatalog(db, quietLogger())
	ctx := context.Background()

	require.NoError(t, c.EnsureSeeded(ctx))
	var first []Plan
	require.NoError(t, db.Order("id").Find(&first).Error)

	require.NoError(t, c.EnsureSeeded(ctx))
	var second []Plan
	require.NoError(t, db.Order("id").Find(&second).Error)

	assert.Equal(t, first, second)
}

func TestEnsureSeededMergesMetadataAndRestoresSeedFields(t *testing.T) {
	db := newTestDB(t)
	c := NewCatalog(db, quietLogger())
	ctx := context.Background()
	require.NoError(t, c.EnsureSeeded(ctx))

	require.NoError(t, db.Model(&Plan{}).Where("id = ?", "plan_pro_monthly").Updates(map[string]interface{}{
		"name":     "Renamed by hand",
		"metadata": datatypes.JSONMap{"stripeProductId": "prod_123"},
	}).Error)

	require.NoError(t, c.EnsureSeeded(ctx))

	p, src, err := c.GetByID(ctx, "plan_pro_monthly")
	require.NoError(t, err)
	assert.Equal(t, SourceStore, src)
	assert.Equal(t, "Profissional", p.Name)
	assert.Equal(t, "prod_123", p.Metadata["stripeProductId"])
	assert.Equal(t, "popular", p.Metadata["badge"])
}

func TestListFallsBackWhenStoreFails(t *testing.T) {
	c := newFailingCatalog(t, 1)

	list, src := c.List(context.Background())
	assert.Equal(t, SourceFallback, src)
	assert.Equal(t, DefaultPlans(), list)
}

func TestListFallsBackWhenStoreIsEmpty(t *testing.T) {
	c := NewCatalog(newTestDB(t), quietLogger())

	list, src := c.List(context.Background())
	assert.Equal(t, SourceFallback, src)
	assert.Len(t, list, len(DefaultPlans()))
}

func TestGetFallsBackToSeed(t *testing.T) {
	c := newFailingCatalog(t, 2)
	ctx := context.Background()

	p, src, err := c.GetByID(ctx, "plan_basic_monthly")
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, src)
	assert.Equal(t, "basic", p.Slug)

	p, src, err = c.GetBySlug(ctx, "business")
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, src)
	assert.Equal(t, Yearly, p.BillingPeriod)
}

func TestGetUnknownPlan(t *testing.T) {
	c := NewCatalog(newTestDB(t), quietLogger())

	_, _, err := c.GetByID(context.Background(), "plan_does_not_exist")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestResolveWritesThrough(t *testing.T) {
	db := newTestDB(t)
	c := NewCatalog(db, quietLogger())
	ctx := context.Background()

	p, err := c.Resolve(ctx, "plan_basic_monthly")
	require.NoError(t, err)
	assert.Equal(t, int64(2990), p.Price)

	_, src, err := c.GetByID(ctx, "plan_basic_monthly")
	require.NoError(t, err)
	assert.Equal(t, SourceStore, src)

	_, err = c.Resolve(ctx, "plan_basic_monthly")
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&Plan{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAnnotateMetadataSurvivesReseed(t *testing.T) {
	c := NewCatalog(newTestDB(t), quietLogger())
	ctx := context.Background()
	require.NoError(t, c.EnsureSeeded(ctx))

	require.NoError(t, c.AnnotateMetadata(ctx, "plan_pro_monthly", map[string]interface{}{"stripePriceId": "price_pro"}))
	require.NoError(t, c.EnsureSeeded(ctx))

	p, _, err := c.GetByID(ctx, "plan_pro_monthly")
	require.NoError(t, err)
	assert.Equal(t, "price_pro", p.Metadata["stripePriceId"])
	assert.Equal(t, "popular", p.Metadata["badge"])

	err = c.AnnotateMetadata(ctx, "plan_gold", map[string]interface{}{"x": "y"})
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestDefaultPlansReturnsCopies(t *testing.T) {
	a := DefaultPlans()
	a[0].Features[0] = "mutated"
	a[2].Metadata["badge"] = "mutated"

	b := DefaultPlans()
	assert.Equal(t, "basic-polls", b[0].Features[0])
	assert.Equal(t, "popular", b[2].Metadata["badge"])
}

func TestBillingPeriodDays(t *testing.T) {
	assert.Equal(t, 30, Monthly.Days())
	assert.Equal(t, 365, Yearly.Days())
	assert.Equal(t, 30, BillingPeriod("").Days())
}

func TestStripePriceID(t *testing.T) {
	p := Plan{Price: 7990}
	assert.Empty(t, p.StripePriceID())

	p.Metadata = datatypes.JSONMap{"stripePriceId": "price_pro"}
	assert.Empty(t, p.StripePriceID(), "amount unknown")

	p.Metadata["stripePriceAmount"] = int64(7990)
	assert.Equal(t, "price_pro", p.StripePriceID())

	// JSON round trips decode numbers as float64.
	p.Metadata["stripePriceAmount"] = float64(7990)
	assert.Equal(t, "price_pro", p.StripePriceID())

	p.Price = 8990
	assert.Empty(t, p.StripePriceID())
}
