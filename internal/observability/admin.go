package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/newswire/internal/auth"
	"github.com/danmuck/newswire/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatusFunc reports live server counters for the health endpoints.
type StatusFunc func() map[string]any

// AdminOptions configure the admin endpoint. A non-empty Token requires
// "Authorization: Bearer <token>" on every route except /ready.
// Responses is served on /responses only when a Token is set.
type AdminOptions struct {
	CORSOrigins []string
	Token       string
	Responses   store.Loader
}

// AdminRouter builds the health/readiness/metrics endpoint.
func AdminRouter(logger zerolog.Logger, opts AdminOptions, status StatusFunc) *gin.Engine {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	started := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"uptime": time.Since(started).String(),
		})
	})

	guarded := r.Group("/")
	if opts.Token != "" {
		guarded.Use(RequireToken(auth.StaticToken{Token: opts.Token}))
	}
	guarded.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status": "ok",
			"uptime": time.Since(started).String(),
		}
		if status != nil {
			for k, v := range status() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})
	guarded.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.Token != "" && opts.Responses != nil {
		guarded.GET("/responses", responsesHandler(opts.Responses))
	}
	return r
}

// responsesHandler returns one persisted payload for ?username=&action=,
// or lists stored keys under ?prefix= when the backend can enumerate them.
func responsesHandler(responses store.Loader) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, action := c.Query("username"), c.Query("action")
		if username == "" && action == "" {
			lister, ok := responses.(store.Lister)
			if !ok {
				c.JSON(http.StatusNotImplemented, gin.H{"error": "backend cannot list responses"})
				return
			}
			keys := lister.Keys(c.Query("prefix"))
			out := make([]gin.H, 0, len(keys))
			for _, k := range keys {
				out = append(out, gin.H{"username": k.Username, "action": k.Action})
			}
			c.JSON(http.StatusOK, gin.H{"responses": out})
			return
		}

		payload, err := responses.Load(c.Request.Context(), store.Key{Username: username, Action: action})
		switch {
		case err == nil:
			c.Data(http.StatusOK, "application/json", payload)
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(err, store.ErrInvalidKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		}
	}
}

// ServeAdmin runs handler on ln until ctx is done.
func ServeAdmin(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
