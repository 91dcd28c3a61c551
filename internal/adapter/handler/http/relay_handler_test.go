package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/usecase"
	"go.uber.org/zap"
)

func newRelayEcho(relay *MockRelayDeliveries) *echo.Echo {
	h := NewRelayHandler(relay, 1<<20, zap.NewNop())
	e := echo.New()
	e.POST("/webhook/:provider", h.HandleWebhook)
	e.GET("/admin/deliveries", h.ListDeliveries)
	e.GET("/admin/deliveries/:id", h.GetDelivery)
	e.POST("/admin/deliveries/:id/redeliver", h.Redeliver)
	return e
}

func relayDo(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRelayHandler_HandleWebhook(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name        string
		err         error
		wantStatus  string
		wantMessage string
	}{
		{name: "queued", wantStatus: usecase.ReceiptReceived, wantMessage: "queued " + id.String()},
		{
			name:        "relay store down",
			err:         fmt.Errorf("%w: connection refused", domainErrors.ErrStorageUnavailable),
			wantStatus:  usecase.ReceiptReceived,
			wantMessage: "forwarded without relay record",
		},
		{name: "other failure", err: errors.New("boom"), wantStatus: usecase.ReceiptError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := new(MockRelayDeliveries)
			delivery := &model.RelayDelivery{ID: id, Provider: "hotmart", Status: model.RelayQueued}
			relay.On("Accept", mock.Anything, "hotmart", []byte(`{"a":1}`), mock.Anything).Return(delivery, tt.err)

			rec := relayDo(newRelayEcho(relay), http.MethodPost, "/webhook/hotmart", `{"a":1}`)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `"status":"`+tt.wantStatus+`"`)
			if tt.wantMessage != "" {
				assert.Contains(t, rec.Body.String(), tt.wantMessage)
			}
			relay.AssertExpectations(t)
		})
	}
}

func TestRelayHandler_ListDeliveries(t *testing.T) {
	relay := new(MockRelayDeliveries)
	relay.On("List", mock.Anything, model.RelayForwardFailed, 50).Return([]*model.RelayDelivery{{ID: uuid.New()}}, nil)
	relay.On("List", mock.Anything, model.RelayQueued, 5).Return([]*model.RelayDelivery{}, nil)
	e := newRelayEcho(relay)

	rec := relayDo(e, http.MethodGet, "/admin/deliveries", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = relayDo(e, http.MethodGet, "/admin/deliveries?status=queued&limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	assert.Equal(t, http.StatusBadRequest, relayDo(e, http.MethodGet, "/admin/deliveries?status=lost", "").Code)
	relay.AssertExpectations(t)
}

func TestRelayHandler_GetAndRedeliver(t *testing.T) {
	relay := new(MockRelayDeliveries)
	known := uuid.New()
	unknown := uuid.New()
	relay.On("Get", mock.Anything, known).Return(&model.RelayDelivery{ID: known, Status: model.RelayForwardFailed}, nil)
	relay.On("Get", mock.Anything, unknown).Return(nil, nil)
	relay.On("Redeliver", mock.Anything, known).Return(&model.RelayDelivery{ID: known, Status: model.RelayQueued}, nil)
	relay.On("Redeliver", mock.Anything, unknown).Return(nil, domainErrors.ErrDeliveryNotFound)
	e := newRelayEcho(relay)

	assert.Equal(t, http.StatusOK, relayDo(e, http.MethodGet, "/admin/deliveries/"+known.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, relayDo(e, http.MethodGet, "/admin/deliveries/"+unknown.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, relayDo(e, http.MethodGet, "/admin/deliveries/xyz", "").Code)

	rec := relayDo(e, http.MethodPost, "/admin/deliveries/"+known.String()+"/redeliver", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)

	assert.Equal(t, http.StatusNotFound, relayDo(e, http.MethodPost, "/admin/deliveries/"+unknown.String()+"/redeliver", "").Code)
}
