package client

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/lombard/internal/api"
	"github.com/erazemk/lombard/internal/auth"
	"github.com/erazemk/lombard/internal/db"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/session"
	"github.com/erazemk/lombard/internal/store"
)

func newBackend(t *testing.T) (*Client, *session.Session) {
	t.Helper()
	database := db.NewTestDB(t)
	hash, err := auth.HashPassword("password")
	require.NoError(t, err)
	_, err = store.CreateUser(context.Background(), database, "Admin", "admin@lombard.test", hash, model.RoleAdmin)
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(database, "secret", api.Options{}))
	t.Cleanup(srv.Close)

	sess := session.New(session.NewMemoryStore())
	sess.Init()
	hc := &http.Client{Transport: &session.Transport{Session: sess}}
	return New(srv.URL+api.Prefix, hc), sess
}

func login(t *testing.T, c *Client, s *session.Session) {
	t.Helper()
	res, err := c.Login(context.Background(), "admin@lombard.test", "password")
	require.NoError(t, err)
	require.NoError(t, s.Begin(res.Token, res.User))
}

func phoneRequest(imei string) model.PawnRequest {
	return model.PawnRequest{
		CustomerName:    "Mg Mg",
		CustomerPhone:   "09123456789",
		CustomerNRC:     "12/OUKAMA(N)123456",
		CustomerAddress: "Yangon",
		Category:        model.CategoryPhone,
		Amount:          150000,
		PawnDate:        model.NewDate(2025, 1, 15),
		DueDate:         model.NewDate(2025, 2, 14),
		Details: model.PhoneDetails{
			Brand: "Samsung", Model: "A15", IMEI: imei, Storage: "128GB", Condition: "Normal",
		},
	}
}

func TestLoginFailure(t *testing.T) {
	c, _ := newBackend(t)

	_, err := c.Login(context.Background(), "admin@lombard.test", "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password", apiErr.UserMessage())
}

func TestPawnItemRoundTrip(t *testing.T) {
	c, s := newBackend(t)
	login(t, c, s)
	ctx := context.Background()

	resp, err := c.CreatePawnItem(ctx, phoneRequest("867530"))
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusCreated, resp.Code)
	id := resp.Data.ID

	resp, err = c.CreatePawnItem(ctx, phoneRequest("867530"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Duplicate IMEI", apiErr.UserMessage())
	require.NotNil(t, resp)
	assert.Equal(t, 0, resp.Success)
	assert.Equal(t, 409, resp.Code)

	items, err := c.ListPawnItems(ctx, model.CategoryPhone, "pawnDate")
	require.NoError(t, err)
	require.Len(t, items, 1)
	phone, ok := items[0].Details.(model.PhoneDetails)
	require.True(t, ok)
	assert.Equal(t, "867530", phone.IMEI)

	item, err := c.GetPawnItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Mg Mg", item.CustomerName)

	redeemed, err := c.RedeemPawnItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRedeemed, redeemed.Status)

	rows, err := c.Reports(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].CheckedOutDate)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Redeemed)

	require.NoError(t, c.DeletePawnItem(ctx, id))
	assert.Error(t, c.DeletePawnItem(ctx, id))
}

func TestProfileRoundTrip(t *testing.T) {
	c, s := newBackend(t)
	login(t, c, s)
	ctx := context.Background()

	p, err := c.UpdateProfile(ctx, ProfileUpdate{
		Name: "Admin", NRC: "12/OUKAMA(N)123456", DOB: model.NewDate(1990, 5, 1), Gender: model.GenderMale,
	})
	require.NoError(t, err)
	assert.Equal(t, "12/OUKAMA(N)123456", p.NRC)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))))
	require.NoError(t, c.UploadPicture(ctx, "me.png", &buf))

	data, mime, err := c.Picture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.NotEmpty(t, data)

	pd, err := c.ProfileData(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin@lombard.test", pd.User.Email)
	assert.True(t, pd.Profile.HasPicture)
}

func TestUnauthorizedClearsSession(t *testing.T) {
	c, s := newBackend(t)
	login(t, c, s)
	ctx := context.Background()

	require.NoError(t, c.Logout(ctx))
	assert.True(t, s.IsAuthenticated())

	_, err := c.ListPawnItems(ctx, model.CategoryAll, "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.False(t, s.IsAuthenticated())
}

func TestNonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Reports(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, model.GenericErrorMessage, apiErr.UserMessage())
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).Stats(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
