package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestNew(t *testing.T) {
	t.Run("stdout console", func(t *testing.T) {
		l, err := New(DefaultConfig())
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "billing.log")
		l, err := New(Config{Level: "debug", Format: "json", Output: path, Service: "permitflow-billing"})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("unwritable file", func(t *testing.T) {
		_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "billing.log")})
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestL_EnrichesFromContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTenantID(ctx, "org-7")
	ctx = WithActor(ctx, "Dana")

	L(ctx).Info("reminder sent")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "org-7", fields["tenant_id"])
	assert.Equal(t, "Dana", fields["actor"])
	assert.NotContains(t, fields, "trace_id")
}

func TestFromContext_Missing(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetActor(context.Background()))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("logs status and attaches logger", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		r := gin.New()
		r.Use(GinMiddleware(zap.New(core)))
		r.GET("/invoices/:id", func(c *gin.Context) {
			L(c.Request.Context()).Info("loading invoice")
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/abc", nil))

		require.Equal(t, 2, recorded.Len())
		assert.Equal(t, "loading invoice", recorded.All()[0].Message)
		entry := recorded.All()[1]
		assert.Equal(t, "HTTP Request", entry.Message)
		assert.Equal(t, int64(http.StatusOK), entry.ContextMap()["status"])
		assert.Equal(t, "/invoices/:id", entry.ContextMap()["route"])
	})

	t.Run("client errors log at warn", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		r := gin.New()
		r.Use(GinMiddleware(zap.New(core)))
		r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.WarnLevel, recorded.All()[0].Level)
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "Panic recovered", recorded.All()[0].Message)
}

func TestGormLogger_Trace(t *testing.T) {
	sqlFn := func() (string, int64) { return "SELECT * FROM invoices", 1 }

	t.Run("error", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, 200*time.Millisecond)
		gl.Trace(context.Background(), time.Now(), sqlFn, errors.New("connection reset"))

		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, "SQL Error", recorded.All()[0].Message)
	})

	t.Run("record not found is quiet", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, 200*time.Millisecond)
		gl.Trace(context.Background(), time.Now(), sqlFn, gormlogger.ErrRecordNotFound)

		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("slow query", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, time.Millisecond)
		gl.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)

		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, "Slow SQL", recorded.All()[0].Message)
	})

	t.Run("silent", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Info, 0).LogMode(gormlogger.Silent)
		gl.Trace(context.Background(), time.Now(), sqlFn, errors.New("ignored"))

		assert.Equal(t, 0, recorded.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
