package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflow/internal/app/api"
	"tableflow/internal/domain"
	"tableflow/internal/service"
	"tableflow/internal/testutil"
)

const testSecret = "test-secret"

type fixture struct {
	handler http.Handler
	store   *testutil.MemStore
	bus     *testutil.RecordingBus
	calls   *service.CallCoordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewMemStore()
	bus := &testutil.RecordingBus{}
	orders := service.NewOrderService(store, bus, nil)
	calls := service.NewCallCoordinator(bus, time.Minute)
	t.Cleanup(calls.Stop)
	presence := service.NewPresenceTracker(testutil.NewMemPresence(), bus, time.Minute)
	return &fixture{
		handler: api.New(orders, calls, presence, bus, testSecret),
		store:   store,
		bus:     bus,
		calls:   calls,
	}
}

func token(t *testing.T, id, name string, role domain.Role) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  id,
		"name": name,
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func submitBody(tableNo int) map[string]any {
	return map[string]any{
		"tableNo":   tableNo,
		"orderType": "dine-in",
		"items": []map[string]any{
			{"productRef": "tea", "title": "Tea", "price": 20.0, "qty": 2},
		},
		"total": 40.0,
	}
}

func (f *fixture) submit(t *testing.T, tableNo int) domain.Order {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/orders", "", submitBody(tableNo))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp domain.SubmitCartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return *resp.Order
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitCart_HTTP(t *testing.T) {
	f := newFixture(t)

	t.Run("creates_then_merges", func(t *testing.T) {
		first := f.submit(t, 7)
		assert.Equal(t, domain.StatusPending, first.Status)
		assert.Equal(t, 40.0, first.Total)

		rec := f.do(t, http.MethodPost, "/orders", "", submitBody(7))
		assert.Equal(t, http.StatusOK, rec.Code, "merge into the live order is not a create")
		var resp domain.SubmitCartResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Created)
		assert.Equal(t, first.ID, resp.Order.ID)
		assert.Equal(t, 80.0, resp.Order.Total)
	})

	t.Run("rejects_bad_body", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/orders", "", map[string]any{"orderType": "delivery"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{nope"))
		raw := httptest.NewRecorder()
		f.handler.ServeHTTP(raw, req)
		assert.Equal(t, http.StatusBadRequest, raw.Code)
	})

	t.Run("unknown_order_404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/orders/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "boards are staff-only")

	rec = f.do(t, http.MethodGet, "/orders", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "w1", "name": "W", "role": "waiter", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/orders", wrongKey, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/orders", token(t, "w1", "Wanda", domain.RoleWaiter), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClaim_HTTP(t *testing.T) {
	f := newFixture(t)
	order := f.submit(t, 5)
	kitchenTok := token(t, "chef-a", "Alice", domain.RoleKitchen)
	rivalTok := token(t, "chef-b", "Bob", domain.RoleKitchen)
	waiterTok := token(t, "w1", "Wanda", domain.RoleWaiter)

	rec := f.do(t, http.MethodPost, "/orders/"+order.ID+"/claim", waiterTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "waiters do not cook")

	rec = f.do(t, http.MethodPost, "/orders/"+order.ID+"/claim", kitchenTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var claimed domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimed))
	assert.Equal(t, domain.StatusMaking, claimed.Status)
	assert.Equal(t, "chef-a", claimed.AssignedChef.ID)

	rec = f.do(t, http.MethodPost, "/orders/"+order.ID+"/claim", rivalTok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "the loser sees already taken")

	rec = f.do(t, http.MethodDelete, "/orders/"+order.ID+"/claim", rivalTok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "only the owner releases")

	rec = f.do(t, http.MethodDelete, "/orders/"+order.ID+"/claim", kitchenTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdvance_HTTP(t *testing.T) {
	f := newFixture(t)
	order := f.submit(t, 6)
	kitchenTok := token(t, "chef-a", "Alice", domain.RoleKitchen)
	waiterTok := token(t, "w1", "Wanda", domain.RoleWaiter)

	rec := f.do(t, http.MethodPut, "/orders/"+order.ID+"/status", kitchenTok, map[string]any{"status": "ready"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "pending orders advance only via claim")

	rec = f.do(t, http.MethodPost, "/orders/"+order.ID+"/claim", kitchenTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/orders/"+order.ID+"/status", kitchenTok, map[string]any{"status": "ready"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/orders/"+order.ID+"/status", waiterTok, map[string]any{"status": "served"})
	require.Equal(t, http.StatusOK, rec.Code)
	var served domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &served))
	assert.Equal(t, domain.StatusServed, served.Status)
	assert.Nil(t, served.AssignedChef)
}

func TestPriorityAndClose_HTTP(t *testing.T) {
	f := newFixture(t)
	order := f.submit(t, 9)
	kitchenTok := token(t, "chef-a", "Alice", domain.RoleKitchen)
	waiterTok := token(t, "w1", "Wanda", domain.RoleWaiter)
	adminTok := token(t, "admin-1", "Ada", domain.RoleAdmin)

	rec := f.do(t, http.MethodPut, "/orders/"+order.ID+"/priority", waiterTok, map[string]any{"isPriority": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, "/orders/"+order.ID+"/priority", kitchenTok, map[string]any{"isPriority": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var flagged domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flagged))
	assert.True(t, flagged.IsPriority)

	rec = f.do(t, http.MethodPost, "/orders/"+order.ID+"/close", waiterTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "closing a table is admin-only")

	rec = f.do(t, http.MethodPost, "/orders/"+order.ID+"/close", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var closed domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closed))
	assert.Equal(t, domain.StatusServed, closed.Status)
	assert.True(t, closed.Paid)

	rec = f.do(t, http.MethodPut, "/orders/"+order.ID+"/priority", kitchenTok, map[string]any{"isPriority": false})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "priority is frozen after preparation")
}

func TestCalls_HTTP(t *testing.T) {
	f := newFixture(t)
	waiterTok := token(t, "w1", "Wanda", domain.RoleWaiter)
	kitchenTok := token(t, "chef-a", "Alice", domain.RoleKitchen)

	rec := f.do(t, http.MethodPost, "/calls", "", map[string]any{"tableNo": 3, "source": "menu"})
	assert.Equal(t, http.StatusAccepted, rec.Code, "customers raise calls without a token")

	rec = f.do(t, http.MethodPost, "/calls", "", map[string]any{"tableNo": 3, "source": "phone"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/calls", waiterTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot []domain.Call
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.Len(t, snapshot, 1)

	rec = f.do(t, http.MethodPost, "/calls/claim", kitchenTok, map[string]any{"tableNo": 3, "source": "menu"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "kitchen staff do not answer table calls")

	rec = f.do(t, http.MethodPost, "/calls/claim", waiterTok, map[string]any{"tableNo": 3, "source": "menu"})
	require.Equal(t, http.StatusOK, rec.Code)
	var call domain.Call
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &call))
	assert.Equal(t, "w1", call.HandledBy.ID)

	rec = f.do(t, http.MethodPost, "/calls/claim", waiterTok, map[string]any{"tableNo": 3, "source": "menu"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/calls/claim", waiterTok, map[string]any{"tableNo": 8, "source": "menu"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresenceAndAdmin_HTTP(t *testing.T) {
	f := newFixture(t)
	waiterTok := token(t, "w1", "Wanda", domain.RoleWaiter)
	adminTok := token(t, "admin-1", "Ada", domain.RoleAdmin)

	rec := f.do(t, http.MethodPost, "/presence/online", waiterTok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/presence", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var online []domain.StaffPresence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &online))
	require.Len(t, online, 1)
	assert.Equal(t, "w1", online[0].StaffID)

	rec = f.do(t, http.MethodPost, "/admin/staff/w1/disable", waiterTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/staff/w1/disable", adminTok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	ev, ok := f.bus.Last(domain.EventAccountDisabled)
	require.True(t, ok)
	assert.Equal(t, "w1", ev.StaffID)

	rec = f.do(t, http.MethodPost, "/admin/staff/w1/call", adminTok, map[string]any{"message": "front desk"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	ev, ok = f.bus.Last(domain.EventStaffCalled)
	require.True(t, ok)
	assert.Equal(t, "front desk", ev.Message)

	rec = f.do(t, http.MethodPost, "/admin/catalog/refresh", adminTok, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	_, ok = f.bus.Last(domain.EventCatalogChanged)
	assert.True(t, ok)
}

func TestHistoryAndBoards_HTTP(t *testing.T) {
	f := newFixture(t)
	waiterTok := token(t, "w1", "Wanda", domain.RoleWaiter)
	adminTok := token(t, "admin-1", "Ada", domain.RoleAdmin)

	a := f.submit(t, 2)
	f.submit(t, 3)
	rec := f.do(t, http.MethodPost, "/orders/"+a.ID+"/close", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/orders/kitchen", waiterTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var kitchen []domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kitchen))
	assert.Len(t, kitchen, 1, "served orders leave the kitchen board")

	rec = f.do(t, http.MethodGet, "/orders/history?limit=10", waiterTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, a.ID, history[0].ID)
}
