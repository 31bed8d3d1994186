package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"algo_fleet/internal/livestate"
	"algo_fleet/internal/modules/config"
	"algo_fleet/internal/modules/health/service"
	"algo_fleet/internal/runner"
	"algo_fleet/internal/store"
)

func NewRouter(state *service.State, bots Bots, live Live, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/livez", func(c *gin.Context) {
		// liveness: процесс жив
		c.String(http.StatusOK, "ok")
	})

	r.GET("/readyz", func(c *gin.Context) {
		// readiness: супервизор сделал первый sync
		if !state.Ready() {
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
		c.String(http.StatusOK, "ready")
	})

	r.GET("/healthz", func(c *gin.Context) {
		var lastSync int64
		if t := state.LastSync(); !t.IsZero() {
			lastSync = t.Unix()
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":        state.Ready(),
			"uptimeSec":    int64(state.Uptime().Seconds()),
			"runners":      state.Runners(),
			"lastSyncUnix": lastSync,
		})
	})

	a := &api{state: state, bots: bots, live: live, log: log.Named("api")}
	g := r.Group("/api")
	g.GET("/bots", a.handleListBots)
	g.POST("/bots/:id/toggle", a.handleToggleBot)
	g.GET("/trades", a.handleListTrades)

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, router *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Service.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					log.Error("http serve", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	gin.SetMode(gin.ReleaseMode)
	return fx.Module("health",
		fx.Provide(
			func(sup *runner.Supervisor) service.Fleet { return sup },
			service.NewState,
			func(st store.Store) Bots { return st },
			func(ch livestate.Channel) Live { return ch },
			NewRouter,
		),
		fx.Invoke(RunHTTP),
	)
}
