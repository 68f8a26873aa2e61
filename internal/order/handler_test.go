package order

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

func TestCreateOrderEndpoint(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)

	body := fmt.Sprintf(`{"userId": %q, "amount": "250.50", "description": "two books"}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEqual(t, uuid.Nil, resp.ID)

	o, err := svc.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusNew, o.Status)
	assert.Equal(t, "two books", o.Description)
}

func TestCreateOrderBadBody(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), uuid.New(), decimal.NewFromInt(10), "o")
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var orders []model.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &orders))
	assert.Len(t, orders, 3)
}

func TestGetOrderEndpoint(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)

	o, err := svc.Create(context.Background(), uuid.New(), decimal.NewFromInt(10), "o")
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/"+o.ID.String(), nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var got model.Order
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, o.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString(), nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
