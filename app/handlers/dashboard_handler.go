package handlers

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/amirphl/shortlink/app/dto"
	"github.com/amirphl/shortlink/app/services"
	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/utils"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// DashboardHandlerInterface defines the contract for the dashboard endpoints
type DashboardHandlerInterface interface {
	Snapshot(c fiber.Ctx) error
	Stats(c fiber.Ctx) error
	Analytics(c fiber.Ctx) error
	Stream(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
}

// DashboardSettings tunes the live stream
type DashboardSettings struct {
	RefetchInterval   time.Duration
	HeartbeatInterval time.Duration
}

type DashboardHandler struct {
	baseHandler
	flow     businessflow.DashboardFlow
	notifier services.ChangeNotifier
	settings DashboardSettings

	// streams is the parent of every live stream; CloseStreams ends them all
	streams     context.Context
	stopStreams context.CancelFunc
}

func NewDashboardHandler(flow businessflow.DashboardFlow, notifier services.ChangeNotifier, settings DashboardSettings, baseURL string, requestTimeout time.Duration) *DashboardHandler {
	if settings.HeartbeatInterval <= 0 {
		settings.HeartbeatInterval = 15 * time.Second
	}
	streams, stop := context.WithCancel(context.Background())
	return &DashboardHandler{
		baseHandler: newBaseHandler(baseURL, requestTimeout),
		flow:        flow,
		notifier:    notifier,
		settings:    settings,
		streams:     streams,
		stopStreams: stop,
	}
}

// CloseStreams ends every open live stream so the server can shut down
func (h *DashboardHandler) CloseStreams() {
	h.stopStreams()
}

// Snapshot returns links, stats and analytics in one payload
// @Summary Dashboard Snapshot
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.DashboardSnapshotDTO} "Dashboard"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/dashboard [get]
func (h *DashboardHandler) Snapshot(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dashboard")
	defer cancel()

	snapshot, err := h.flow.Snapshot(ctx, userID, h.shortLinkOrigin(c))
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to load dashboard", "DASHBOARD_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Dashboard retrieved successfully", snapshot)
}

// Stats returns totals over the caller's active links
// @Summary Dashboard Stats
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.DashboardStatsDTO} "Stats"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/dashboard/stats [get]
func (h *DashboardHandler) Stats(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dashboard/stats")
	defer cancel()

	stats, err := h.flow.Stats(ctx, userID)
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to load stats", "STATS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Stats retrieved successfully", stats)
}

// Analytics returns the trailing seven day click series
// @Summary Click Analytics
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ClickAnalyticsResponse} "Seven day series"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/dashboard/analytics [get]
func (h *DashboardHandler) Analytics(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dashboard/analytics")
	defer cancel()

	analytics, err := h.flow.Analytics(ctx, userID)
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to load analytics", "ANALYTICS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Analytics retrieved successfully", analytics)
}

// Stream pushes the live dashboard state as Server-Sent Events. Every state change is a
// "snapshot" event; a comment line is written every heartbeat interval to keep proxies open
// and to notice disconnected clients.
// @Summary Live Dashboard Stream
// @Tags Dashboard
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {object} dto.DashboardStateDTO "snapshot events"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/dashboard/stream [get]
func (h *DashboardHandler) Stream(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	baseURL := h.shortLinkOrigin(c)
	ctx := context.WithValue(h.streams, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.EndpointKey, "/api/v1/dashboard/stream")
	ctx, cancel := context.WithCancel(ctx)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		live := businessflow.NewLiveDashboard(h.flow, h.notifier, userID, baseURL, h.settings.RefetchInterval)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = live.Run(ctx)
		}()
		defer func() {
			cancel()
			<-done
		}()

		heartbeat := time.NewTicker(h.settings.HeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case state, ok := <-live.Updates():
				if !ok {
					return
				}
				if err := writeSSE(w, "snapshot", state.Version, toDashboardStateDTO(state)); err != nil {
					logging.Ctx(ctx).Debug().Err(err).Uint("user_id", userID).Msg("Dashboard stream closed")
					return
				}
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					logging.Ctx(ctx).Debug().Err(err).Uint("user_id", userID).Msg("Dashboard stream closed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})
}

// Refresh asks every open dashboard of the caller to re-fetch
// @Summary Refresh Dashboard
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 202 {object} dto.APIResponse "Refresh requested"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/dashboard/refresh [post]
func (h *DashboardHandler) Refresh(c fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", businessflow.CodeTokenInvalid, nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dashboard/refresh")
	defer cancel()

	err := h.notifier.Publish(ctx, services.ChangeEvent{
		UserID: userID,
		Table:  services.ChangeTableLinks,
		Op:     services.ChangeOpRefresh,
		At:     utils.UTCNow(),
	})
	if err != nil {
		return h.businessErrorResponse(c, ctx, err, "Failed to request refresh", "REFRESH_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Refresh requested", nil)
}

func toDashboardStateDTO(state businessflow.LiveState) dto.DashboardStateDTO {
	out := dto.DashboardStateDTO{
		Snapshot: state.Snapshot,
		Loading:  state.Loading,
		Version:  state.Version,
	}
	if state.Err != nil {
		out.Error = "Failed to refresh dashboard"
	}
	return out
}

// writeSSE frames one event. The payload is single-line JSON so one data field suffices.
func writeSSE(w *bufio.Writer, event string, id uint64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event, id, data); err != nil {
		return err
	}
	return w.Flush()
}
