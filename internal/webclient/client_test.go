package webclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CurrentUser(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.addToken("tok-1", &User{ID: "user-1", Name: "Alice", Email: "alice@example.com", GoogleID: "g-1"})
	c := NewClient(srv.URL+"/", nil)

	user, err := c.CurrentUser(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "g-1", user.GoogleID)
	assert.Equal(t, srv.URL, c.BaseURL())
}

func TestClient_401MapsToErrUnauthenticated(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := NewClient(srv.URL, nil)

	_, err := c.CurrentUser(context.Background(), "forged")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = c.ListItems(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestClient_ItemsRoundTrip(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.addToken("tok-1", &User{ID: "user-1"})
	api.items = []Item{{ID: "a", Name: "Widget"}, {ID: "b", Name: "Bolt"}}
	c := NewClient(srv.URL, nil)
	ctx := context.Background()

	items, err := c.ListItems(ctx, "tok-1", "wid")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Widget", items[0].Name)

	created, err := c.CreateItem(ctx, "tok-1", ItemInput{Name: "Nut", Quantity: 3, Price: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "item-new", created.ID)

	summary, err := c.Summary(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ItemCount)

	got, err := c.GetItem(ctx, "tok-1", "b")
	require.NoError(t, err)
	assert.Equal(t, "Bolt", got.Name)

	updated, err := c.UpdateItem(ctx, "tok-1", "b", ItemInput{Name: "Hex Bolt", Quantity: 12, Price: 0.4})
	require.NoError(t, err)
	assert.Equal(t, "Hex Bolt", updated.Name)
	assert.Equal(t, 12, updated.Quantity)

	require.NoError(t, c.DeleteItem(ctx, "tok-1", "a"))
	_, err = c.GetItem(ctx, "tok-1", "a")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestClient_NonAuthErrorsReturnAPIError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.addToken("tok-1", &User{ID: "user-1"})
	c := NewClient(srv.URL, nil)

	_, err := c.CreateItem(context.Background(), "tok-1", ItemInput{Name: "Nut", Quantity: -1})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "want *APIError, got %v", err)
	assert.Equal(t, 422, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)

	_, err = c.GetItem(context.Background(), "tok-1", "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Save(ctx, "tok"))
	got, _ = store.Load(ctx)
	assert.Equal(t, "tok", got)

	require.NoError(t, store.Clear(ctx))
	got, _ = store.Load(ctx)
	assert.Empty(t, got)
}
