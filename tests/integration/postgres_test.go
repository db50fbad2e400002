//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/token-checkout/internal/checkout"
	"github.com/xenking/token-checkout/internal/domain/cart"
	"github.com/xenking/token-checkout/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kart",
				"POSTGRES_PASSWORD": "kart",
				"POSTGRES_DB":       "kart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	databaseURL := fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port())

	pool, err = postgres.NewPool(ctx, databaseURL)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	return m.Run()
}

func TestCartRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewCartRepository(pool)

	created, err := repo.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, cart.DefaultVersion, created.Version())

	c, err := repo.Get(ctx, created.ID())
	require.NoError(t, err)
	require.NoError(t, c.AddItem("APE", 2))
	require.NoError(t, repo.Save(ctx, c, cart.DefaultVersion))

	got, err := repo.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version())
	assert.Equal(t, 2, got.ItemQuantity(cart.SKUApe))
}

func TestCartRepository_GetNotFound(t *testing.T) {
	repo := postgres.NewCartRepository(pool)

	_, err := repo.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	var nfErr *cart.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestCartRepository_VersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewCartRepository(pool)

	created, err := repo.Create(ctx)
	require.NoError(t, err)

	a, err := repo.Get(ctx, created.ID())
	require.NoError(t, err)
	b, err := repo.Get(ctx, created.ID())
	require.NoError(t, err)

	require.NoError(t, a.AddItem("APE", 1))
	require.NoError(t, repo.Save(ctx, a, cart.DefaultVersion))

	require.NoError(t, b.AddItem("PUNK", 1))
	err = repo.Save(ctx, b, cart.DefaultVersion)

	var vcErr *cart.VersionConflictError
	require.ErrorAs(t, err, &vcErr)
	assert.Equal(t, cart.DefaultVersion, vcErr.Expected)
	assert.Equal(t, int64(2), vcErr.Actual)

	// The losing write left no trace.
	got, err := repo.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, got.ItemQuantity(cart.SKUPunk))
}

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	store, err := postgres.NewIdempotencyStore(ctx, pool)
	require.NoError(t, err)

	v, err := store.VerifyAndSet(ctx, "it-key-1", "cart-1", "APE:2")
	require.NoError(t, err)
	assert.False(t, v.Duplicate)

	require.NoError(t, store.Set(ctx, "it-key-1", "cart-1", 7, "APE:2"))

	v, err = store.VerifyAndSet(ctx, "it-key-1", "cart-1", "APE:2")
	require.NoError(t, err)
	assert.True(t, v.Duplicate)
	assert.Equal(t, int64(7), v.Version)

	_, err = store.VerifyAndSet(ctx, "it-key-1", "cart-1", "APE:3")
	var kcErr *checkout.KeyConflictError
	require.ErrorAs(t, err, &kcErr)
	assert.Equal(t, "APE:2", kcErr.ExpectedFingerprint)

	_, err = store.VerifyAndSet(ctx, "it-key-1", "cart-2", "APE:2")
	require.ErrorAs(t, err, &kcErr)
	assert.Equal(t, "cart-1:APE:2", kcErr.ExpectedFingerprint)
	assert.Equal(t, "cart-2:APE:2", kcErr.ReceivedFingerprint)
}

func TestIdempotencyStore_WarmsBloomFromTable(t *testing.T) {
	ctx := context.Background()

	first, err := postgres.NewIdempotencyStore(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "it-warm-1", "cart-9", 3, "MEEBIT:1"))

	// A fresh store built over the same table must see the existing key.
	second, err := postgres.NewIdempotencyStore(ctx, pool)
	require.NoError(t, err)

	v, err := second.VerifyAndSet(ctx, "it-warm-1", "cart-9", "MEEBIT:1")
	require.NoError(t, err)
	assert.True(t, v.Duplicate)
	assert.Equal(t, int64(3), v.Version)
}

func TestPriceProvider(t *testing.T) {
	ctx := context.Background()
	provider := postgres.NewPriceProvider(pool)

	// The migration seeds the default price table.
	prices, err := provider.GetPrices(ctx, []cart.SKU{cart.SKUApe, cart.SKUPunk, cart.SKUMeebit})
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.Equal(t, "75", prices[cart.SKUApe].String())
	assert.Equal(t, "60", prices[cart.SKUPunk].String())
	assert.Equal(t, "4", prices[cart.SKUMeebit].String())
}
