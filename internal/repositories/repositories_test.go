package repositories_test

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/database"
	"marketplace/internal/models"
	"marketplace/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	return db
}

func createUser(t *testing.T, repo *repositories.GORMUserRepository, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "hash"}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestGORMUserRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMUserRepository(setupDB(t))

	user := createUser(t, repo, "alice")
	assert.NotZero(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMUserRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMUserRepository(setupDB(t))
	createUser(t, repo, "alice")

	exists, err := repo.ExistsByUsernameOrEmail(ctx, "alice", "other@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByUsernameOrEmail(ctx, "someone", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByUsernameOrEmail(ctx, "bob", "bob@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	err = repo.Create(ctx, &models.User{Username: "alice", Email: "new@example.com", Password: "hash"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
}

func TestGORMProductRepository_OrderingNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	users := repositories.NewGORMUserRepository(db)
	repo := repositories.NewGORMProductRepository(db)
	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	seed := []models.Product{
		{Name: "oldest", Price: decimal.NewFromInt(1), UserID: alice.ID, CreatedAt: base},
		{Name: "newest", Price: decimal.NewFromInt(3), UserID: bob.ID, CreatedAt: base.Add(2 * time.Hour)},
		{Name: "middle", Price: decimal.NewFromInt(2), UserID: alice.ID, CreatedAt: base.Add(time.Hour)},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"newest", "middle", "oldest"}, []string{all[0].Name, all[1].Name, all[2].Name})

	mine, err := repo.GetByUserID(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "middle", mine[0].Name)
	assert.Equal(t, "oldest", mine[1].Name)
}

func TestGORMProductRepository_PriceRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	owner := createUser(t, repositories.NewGORMUserRepository(db), "alice")
	repo := repositories.NewGORMProductRepository(db)

	product := &models.Product{Name: "Lamp", Price: decimal.RequireFromString("19.99"), UserID: owner.ID}
	require.NoError(t, repo.Create(ctx, product))

	got, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("19.99").Equal(got.Price), "price = %s", got.Price)

	_, err = repo.GetByID(ctx, product.ID+100)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMProductRepository_UpdateOwned(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	users := repositories.NewGORMUserRepository(db)
	repo := repositories.NewGORMProductRepository(db)
	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	product := &models.Product{Name: "Lamp", Description: "desk lamp", Price: decimal.NewFromInt(10), UserID: alice.ID}
	require.NoError(t, repo.Create(ctx, product))

	stranger := *product
	stranger.UserID = bob.ID
	stranger.Name = "Stolen"
	ok, err := repo.UpdateOwned(ctx, &stranger)
	require.NoError(t, err)
	assert.False(t, ok)

	product.Name = "Floor lamp"
	product.Description = ""
	product.ImageKey = "products/abc-lamp.png"
	product.ImageURL = "https://bucket.s3.us-east-1.amazonaws.com/products/abc-lamp.png"
	ok, err = repo.UpdateOwned(ctx, product)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Floor lamp", got.Name)
	assert.Empty(t, got.Description)
	assert.Equal(t, "products/abc-lamp.png", got.ImageKey)

	missing := *product
	missing.ID = product.ID + 100
	ok, err = repo.UpdateOwned(ctx, &missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGORMProductRepository_DeleteOwned(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	users := repositories.NewGORMUserRepository(db)
	repo := repositories.NewGORMProductRepository(db)
	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	product := &models.Product{Name: "Lamp", Price: decimal.NewFromInt(10), UserID: alice.ID}
	require.NoError(t, repo.Create(ctx, product))

	ok, err := repo.DeleteOwned(ctx, product.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteOwned(ctx, product.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.GetByID(ctx, product.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	ok, err = repo.DeleteOwned(ctx, product.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
