package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sportsbook-betting-core/internal/domain/market"
	"github.com/sportsbook-betting-core/internal/domain/settlement"
	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/settlementengine"
)

type MockRequestPublisher struct {
	mock.Mock
}

func (m *MockRequestPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockRequestPublisher) Close() error {
	return m.Called().Error(0)
}

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) SettleMarket(ctx context.Context, marketID uuid.UUID, results []shared.SelectionResultInput, correlationID string) (*settlement.Record, error) {
	args := m.Called(ctx, marketID, results, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Record), args.Error(1)
}

func (m *MockEngine) SettleEvent(ctx context.Context, eventID uuid.UUID, score market.Score, correlationID string) ([]*settlement.Record, error) {
	args := m.Called(ctx, eventID, score, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Record), args.Error(1)
}

func (m *MockEngine) VoidMarket(ctx context.Context, marketID uuid.UUID, reason, correlationID string) (*settlement.Record, error) {
	args := m.Called(ctx, marketID, reason, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Record), args.Error(1)
}

func (m *MockEngine) Retry(ctx context.Context, settlementID uuid.UUID, correlationID string) (*settlement.Record, error) {
	args := m.Called(ctx, settlementID, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Record), args.Error(1)
}

func (m *MockEngine) GetSettlement(ctx context.Context, settlementID uuid.UUID) (*settlement.Record, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Record), args.Error(1)
}

func (m *MockEngine) ListByMarket(ctx context.Context, marketID uuid.UUID, page, perPage int) ([]*settlement.Record, error) {
	args := m.Called(ctx, marketID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*settlement.Record), args.Error(1)
}

var _ settlementengine.Engine = (*MockEngine)(nil)

func TestSettlementHandler_SettleEvent(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Accepted", func(t *testing.T) {
		publisher := new(MockRequestPublisher)
		handler := NewSettlementHandler(logger, publisher, new(MockEngine))

		eventID := uuid.New()
		publisher.On("Publish", mock.Anything, eventID.String(), mock.MatchedBy(func(v interface{}) bool {
			req, ok := v.(*shared.SettlementRequest)
			return ok && req.Type == shared.SettlementRequestSettleEvent &&
				req.EventID == eventID && req.HomeScore == 2 && req.AwayScore == 1
		})).Return(nil)

		router := setupTestRouter()
		router.POST("/settlements/events/:id", handler.SettleEvent)

		jsonBody, _ := json.Marshal(SettleEventRequest{HomeScore: 2, AwayScore: 1})
		req, _ := http.NewRequest(http.MethodPost, "/settlements/events/"+eventID.String(), bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		resp := decodeData[SettlementAcceptedResponse](t, rr.Body.Bytes())
		assert.Equal(t, "accepted", resp.Status)
		assert.NotEmpty(t, resp.RequestID)
		publisher.AssertExpectations(t)
	})

	t.Run("BrokerDown", func(t *testing.T) {
		publisher := new(MockRequestPublisher)
		handler := NewSettlementHandler(logger, publisher, new(MockEngine))

		eventID := uuid.New()
		publisher.On("Publish", mock.Anything, eventID.String(), mock.Anything).
			Return(errors.New("kafka: broker unreachable"))

		router := setupTestRouter()
		router.POST("/settlements/events/:id", handler.SettleEvent)

		jsonBody, _ := json.Marshal(SettleEventRequest{HomeScore: 0, AwayScore: 0})
		req, _ := http.NewRequest(http.MethodPost, "/settlements/events/"+eventID.String(), bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestSettlementHandler_SettleMarket(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Accepted", func(t *testing.T) {
		publisher := new(MockRequestPublisher)
		handler := NewSettlementHandler(logger, publisher, new(MockEngine))

		marketID := uuid.New()
		selectionID := uuid.New()
		publisher.On("Publish", mock.Anything, marketID.String(), mock.MatchedBy(func(v interface{}) bool {
			req, ok := v.(*shared.SettlementRequest)
			return ok && req.Type == shared.SettlementRequestSettleMarket &&
				req.MarketID == marketID && len(req.Results) == 1 &&
				req.Results[0].SelectionID == selectionID && req.Results[0].Result == "winner"
		})).Return(nil)

		router := setupTestRouter()
		router.POST("/settlements/markets/:id", handler.SettleMarket)

		jsonBody, _ := json.Marshal(SettleMarketRequest{
			Results: []SelectionResultRequest{{SelectionID: selectionID.String(), Result: "winner"}},
		})
		req, _ := http.NewRequest(http.MethodPost, "/settlements/markets/"+marketID.String(), bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		publisher.AssertExpectations(t)
	})

	t.Run("UnknownResultRejected", func(t *testing.T) {
		publisher := new(MockRequestPublisher)
		handler := NewSettlementHandler(logger, publisher, new(MockEngine))

		router := setupTestRouter()
		router.POST("/settlements/markets/:id", handler.SettleMarket)

		jsonBody, _ := json.Marshal(SettleMarketRequest{
			Results: []SelectionResultRequest{{SelectionID: uuid.NewString(), Result: "maybe"}},
		})
		req, _ := http.NewRequest(http.MethodPost, "/settlements/markets/"+uuid.NewString(), bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		publisher.AssertExpectations(t)
	})
}

func TestSettlementHandler_GetByID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		engine := new(MockEngine)
		handler := NewSettlementHandler(logger, new(MockRequestPublisher), engine)

		record := settlement.NewRecord(settlement.KindMarket, uuid.New(), nil)
		record.RecordOutcome(uuid.New(), market.SelectionWinner)
		engine.On("GetSettlement", mock.Anything, record.ID).Return(record, nil)

		router := setupTestRouter()
		router.GET("/settlements/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/settlements/"+record.ID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeData[SettlementRecordResponse](t, rr.Body.Bytes())
		assert.Equal(t, record.ID.String(), resp.ID)
		assert.Equal(t, "settled", resp.Status)
		require.Len(t, resp.Outcomes, 1)
	})

	t.Run("NotFound", func(t *testing.T) {
		engine := new(MockEngine)
		handler := NewSettlementHandler(logger, new(MockRequestPublisher), engine)

		settlementID := uuid.New()
		engine.On("GetSettlement", mock.Anything, settlementID).
			Return(nil, shared.NewError(shared.KindSettlementNotFound, "settlement "+settlementID.String()))

		router := setupTestRouter()
		router.GET("/settlements/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/settlements/"+settlementID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
