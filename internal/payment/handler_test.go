package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zdemoox/BHW3/internal/model"
)

func newTestRouter(t *testing.T) (*mux.Router, *Service) {
	t.Helper()
	log := zaptest.NewLogger(t)
	svc := NewService(NewMemoryStore(), log)
	r := mux.NewRouter()
	NewHandler(svc, log).Register(r)
	return r, svc
}

func post(r *mux.Router, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	userID := uuid.New()

	rr := post(r, "/accounts", fmt.Sprintf(`{"userId": %q}`, userID))
	assert.Equal(t, http.StatusOK, rr.Code)

	// The second registration for the same user is a client error.
	rr = post(r, "/accounts", fmt.Sprintf(`{"userId": %q}`, userID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTopUpEndpoint(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)
	userID := uuid.New()
	require.NoError(t, svc.Register(context.Background(), userID))

	rr := post(r, "/accounts/topup", fmt.Sprintf(`{"userId": %q, "amount": "150.25"}`, userID))
	require.Equal(t, http.StatusOK, rr.Code)

	a, err := svc.Account(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.RequireFromString("150.25")))
}

func TestTopUpUnknownUserEndpoint(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rr := post(r, "/accounts/topup", fmt.Sprintf(`{"userId": %q, "amount": "10"}`, uuid.New()))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetAccountEndpoint(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)
	userID := uuid.New()
	require.NoError(t, svc.Register(context.Background(), userID))
	require.NoError(t, svc.TopUp(context.Background(), userID, decimal.NewFromInt(75)))

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/accounts/"+userID.String(), nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var a model.Account
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
		assert.Equal(t, userID, a.UserID)
		assert.True(t, a.Balance.Equal(decimal.NewFromInt(75)))
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/accounts/"+uuid.NewString(), nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/accounts/nope", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRegisterBadBody(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	rr := post(r, "/accounts", "not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
