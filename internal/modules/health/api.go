package health

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"algo_fleet/internal/models"
	"algo_fleet/internal/modules/health/service"
	"algo_fleet/internal/runner"
	"algo_fleet/internal/store"
)

// Bots: часть хранилища, нужная API.
type Bots interface {
	ListBots(ctx context.Context) ([]models.BotConfig, error)
	ToggleActive(ctx context.Context, id int64) (bool, error)
	ListTrades(ctx context.Context, botID int64, limit int) ([]models.Trade, error)
}

// Live: чтение живости ботов.
type Live interface {
	Get(ctx context.Context, botID int64) (models.LiveStatus, error)
}

type botView struct {
	models.BotConfig
	Status    models.BotStatus      `json:"status"`
	LastCheck *int64                `json:"last_check,omitempty"`
	Position  *models.PositionState `json:"position,omitempty"`
	LastError string                `json:"last_error,omitempty"`
}

type api struct {
	state *service.State
	bots  Bots
	live  Live
	log   *zap.Logger
}

func errorResponse(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

func (a *api) handleListBots(c *gin.Context) {
	ctx := c.Request.Context()
	bots, err := a.bots.ListBots(ctx)
	if err != nil {
		a.log.Error("list bots", zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, "failed to list bots")
		return
	}

	snaps := make(map[int64]runner.Snapshot)
	for _, s := range a.state.Fleet().Status() {
		snaps[s.BotID] = s
	}

	out := make([]botView, 0, len(bots))
	for _, b := range bots {
		v := botView{BotConfig: b, Status: models.StatusStopped}
		// недоступный канал живости не валит список
		if ls, err := a.live.Get(ctx, b.ID); err != nil {
			a.log.Warn("live status unavailable", zap.Int64("bot_id", b.ID), zap.Error(err))
		} else {
			v.Status = ls.Status
			if !ls.LastCheck.IsZero() {
				ts := ls.LastCheck.Unix()
				v.LastCheck = &ts
			}
		}
		if snap, ok := snaps[b.ID]; ok {
			v.Position = snap.Position
			v.LastError = snap.LastError
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) handleToggleBot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorResponse(c, http.StatusBadRequest, "invalid bot id")
		return
	}
	ctx := c.Request.Context()
	active, err := a.bots.ToggleActive(ctx, id)
	if errors.Is(err, store.ErrBotNotFound) {
		errorResponse(c, http.StatusNotFound, "bot not found")
		return
	}
	if err != nil {
		a.log.Error("toggle bot", zap.Int64("bot_id", id), zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, "failed to toggle bot")
		return
	}
	// флаг уже сохранён; синк ускоряет запуск/остановку, иначе подхватит тикер
	if err := a.state.Fleet().Sync(ctx); err != nil {
		a.log.Warn("sync after toggle", zap.Int64("bot_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": active})
}

func (a *api) handleListTrades(c *gin.Context) {
	var botID int64
	if raw := c.Query("bot_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid bot_id")
			return
		}
		botID = id
	}
	limit := store.DefaultTradesLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = store.ClampLimit(n)
	}

	trades, err := a.bots.ListTrades(c.Request.Context(), botID, limit)
	if err != nil {
		a.log.Error("list trades", zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	c.JSON(http.StatusOK, trades)
}
