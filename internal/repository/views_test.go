package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

func TestCredentials(t *testing.T) {
	doc := model.EmptyDocument()
	c := (&Tx{doc: doc}).Users()

	require.Equal(t, int64(1), c.NextID())
	require.NoError(t, c.Insert(model.User{ID: 1, Username: "admin", Role: model.RoleAdmin}))
	require.NoError(t, c.Insert(model.User{ID: 5, Username: "biz", Role: model.RoleCollaborator}))
	require.Equal(t, int64(6), c.NextID())

	require.ErrorIs(t, c.Insert(model.User{ID: 6, Username: "biz"}), errs.ErrAlreadyExists)
	require.ErrorIs(t, c.Insert(model.User{ID: 5, Username: "other"}), errs.ErrAlreadyExists)
	require.ErrorIs(t, c.Insert(model.User{ID: 0, Username: "zero"}), errs.ErrValidation)

	u, err := c.ByUsername("biz")
	require.NoError(t, err)
	require.Equal(t, int64(5), u.ID)
	_, err = c.ByUsername("nobody")
	require.ErrorIs(t, err, errs.ErrNotFound)

	admin, ok := c.Admin()
	require.True(t, ok)
	require.Equal(t, "admin", admin.Username)

	u.Username = "admin"
	require.ErrorIs(t, c.Replace(u), errs.ErrAlreadyExists)
	u.Username = "biz-renamed"
	require.NoError(t, c.Replace(u))
	got, err := c.ByID(5)
	require.NoError(t, err)
	require.Equal(t, "biz-renamed", got.Username)

	require.ErrorIs(t, c.Replace(model.User{ID: 99, Username: "ghost"}), errs.ErrNotFound)
	require.NoError(t, c.Delete(5))
	require.ErrorIs(t, c.Delete(5), errs.ErrNotFound)
	require.Len(t, c.All(), 1)
}

func TestListings(t *testing.T) {
	doc := model.EmptyDocument()
	l := (&Tx{doc: doc}).Ads()

	require.Equal(t, int64(1), l.NextID())
	require.NoError(t, l.Insert(model.Ad{ID: 1, UserID: 2, Category: "food"}))
	require.NoError(t, l.Insert(model.Ad{ID: 2, UserID: 3, Category: "Food"}))
	require.NoError(t, l.Insert(model.Ad{ID: 3, UserID: 2, Category: "services"}))
	require.ErrorIs(t, l.Insert(model.Ad{ID: 3}), errs.ErrAlreadyExists)
	require.Equal(t, int64(4), l.NextID())

	food := l.ByCategory("food")
	require.Len(t, food, 1, "category match is case-sensitive")
	require.Equal(t, int64(1), food[0].ID)
	require.NotNil(t, l.ByCategory("none"))
	require.Empty(t, l.ByCategory("none"))

	require.Len(t, l.ByOwner(2), 2)

	a, err := l.ByID(2)
	require.NoError(t, err)
	a.Title = "changed"
	require.NoError(t, l.Replace(a))
	got, _ := l.ByID(2)
	require.Equal(t, "changed", got.Title)

	require.Equal(t, 2, l.DeleteByOwner(2))
	require.Empty(t, l.ByOwner(2))
	require.Len(t, l.All(), 1)

	require.NoError(t, l.Delete(2))
	require.ErrorIs(t, l.Delete(2), errs.ErrNotFound)
	_, err = l.ByID(2)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListings_AllReturnsCopy(t *testing.T) {
	doc := model.EmptyDocument()
	l := (&Tx{doc: doc}).Ads()
	require.NoError(t, l.Insert(model.Ad{ID: 1, Title: "a"}))

	all := l.All()
	all[0].Title = "mutated"
	got, _ := l.ByID(1)
	require.Equal(t, "a", got.Title)
}
