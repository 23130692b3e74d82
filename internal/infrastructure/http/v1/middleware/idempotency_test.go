package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"stockledger/internal/core/idempotency"
	"stockledger/pkg/logger"
)

type failingStore struct {
	completeErr error
	completed   int
}

func (s *failingStore) AcquireKey(context.Context, string, string, string, string) (*idempotency.Replay, error) {
	return nil, nil
}

func (s *failingStore) CompleteKey(context.Context, string, int, string, any) error {
	s.completed++
	return s.completeErr
}

func (s *failingStore) FailKey(context.Context, string, int, string, any) error { return nil }

func (s *failingStore) ReleaseKey(context.Context, string) error { return nil }

func TestCompleteIdempotency_LogsStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	log := logger.NewFromZap(zap.New(core))
	store := &failingStore{completeErr: errors.New("connection reset")}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))
		c.Next()
	})
	r.Use(Idempotency(store))
	r.POST("/stock/adjustments", func(c *gin.Context) {
		body := gin.H{"quantity": 5}
		CompleteIdempotency(c, http.StatusCreated, "application/json", body)
		c.JSON(http.StatusCreated, body)
	})

	req := httptest.NewRequest(http.MethodPost, "/stock/adjustments", strings.NewReader(`{"quantity":5}`))
	req.Header.Set(HeaderIdempotencyKey, "adj-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, store.completed)

	warned := logs.FilterMessage("store idempotent response failed").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zap.WarnLevel, warned[0].Level)
	assert.Equal(t, "adj-1", warned[0].ContextMap()["idempotency_key"])
}
