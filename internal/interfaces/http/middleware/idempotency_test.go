package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type mapIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newMapIdempotencyStore() *mapIdempotencyStore {
	return &mapIdempotencyStore{keys: make(map[string]bool)}
}

func (s *mapIdempotencyStore) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *mapIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func idempotentRouter(store IdempotencyStore, status *int) *gin.Engine {
	router := gin.New()
	router.Use(Idempotency(store, time.Hour, nil))
	router.POST("/api/v1/invoices/:id/collections/reminder", func(c *gin.Context) {
		c.Status(*status)
	})
	return router
}

func postReminder(router *gin.Engine, invoiceID, key string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+invoiceID+"/collections/reminder", nil)
	if key != "" {
		req.Header.Set(IdempotencyHeaderKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestIdempotency(t *testing.T) {
	t.Run("repeated key is rejected", func(t *testing.T) {
		status := http.StatusCreated
		router := idempotentRouter(newMapIdempotencyStore(), &status)

		assert.Equal(t, http.StatusCreated, postReminder(router, "inv-1", "k1"))
		assert.Equal(t, http.StatusConflict, postReminder(router, "inv-1", "k1"))
	})

	t.Run("same key on another invoice is independent", func(t *testing.T) {
		status := http.StatusCreated
		router := idempotentRouter(newMapIdempotencyStore(), &status)

		assert.Equal(t, http.StatusCreated, postReminder(router, "inv-1", "k1"))
		assert.Equal(t, http.StatusCreated, postReminder(router, "inv-2", "k1"))
	})

	t.Run("failed request releases the key", func(t *testing.T) {
		status := http.StatusConflict
		router := idempotentRouter(newMapIdempotencyStore(), &status)

		assert.Equal(t, http.StatusConflict, postReminder(router, "inv-1", "k1"))
		status = http.StatusCreated
		assert.Equal(t, http.StatusCreated, postReminder(router, "inv-1", "k1"))
	})

	t.Run("requests without a key pass through", func(t *testing.T) {
		status := http.StatusCreated
		router := idempotentRouter(newMapIdempotencyStore(), &status)

		assert.Equal(t, http.StatusCreated, postReminder(router, "inv-1", ""))
		assert.Equal(t, http.StatusCreated, postReminder(router, "inv-1", ""))
	})

	t.Run("store failure does not block the request", func(t *testing.T) {
		store := newMapIdempotencyStore()
		store.err = errors.New("redis down")
		status := http.StatusCreated
		router := idempotentRouter(store, &status)

		assert.Equal(t, http.StatusCreated, postReminder(router, "inv-1", "k1"))
		assert.Equal(t, http.StatusCreated, postReminder(router, "inv-1", "k1"))
	})

	t.Run("oversized key is rejected", func(t *testing.T) {
		status := http.StatusCreated
		router := idempotentRouter(newMapIdempotencyStore(), &status)

		assert.Equal(t, http.StatusBadRequest, postReminder(router, "inv-1", strings.Repeat("k", 300)))
	})
}
