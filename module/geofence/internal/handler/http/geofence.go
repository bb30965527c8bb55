package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/geonotify/module/geofence/domain"
	"github.com/nandanugg/geonotify/module/geofence/service"
)

type commandService interface {
	Initialize() *service.Future[[]error]
	DeviceReady() *service.Future[struct{}]
	Ping() *service.Future[struct{}]
	AddOrUpdate(defs []domain.Definition) *service.Future[struct{}]
	GetWatched() *service.Future[[]domain.Definition]
	Remove(ids []string) *service.Future[struct{}]
	RemoveAll() *service.Future[struct{}]
	SetAppState(state domain.AppState)
}

type initializeResponse struct {
	Status   string   `json:"status"`
	Warnings []string `json:"warnings"`
}

type appStateRequest struct {
	State string `json:"state" binding:"required"`
}

type GeofenceHandler struct {
	commands commandService
}

func NewGeofenceHandler(commands commandService) *GeofenceHandler {
	return &GeofenceHandler{commands: commands}
}

func (h *GeofenceHandler) Register(r *gin.RouterGroup) {
	r.POST("/initialize", h.Initialize)
	r.POST("/device-ready", h.DeviceReady)
	r.GET("/ping", h.Ping)
	r.POST("/geofences", h.AddOrUpdate)
	r.GET("/geofences", h.GetWatched)
	r.POST("/geofences/remove", h.Remove)
	r.DELETE("/geofences", h.RemoveAll)
	r.PUT("/app/state", h.SetAppState)
}

func (h *GeofenceHandler) Initialize(c *gin.Context) {
	problems, err := h.commands.Initialize().Wait(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to initialize")
		return
	}

	warnings := make([]string, len(problems))
	for i, p := range problems {
		warnings[i] = p.Error()
	}
	c.JSON(http.StatusOK, initializeResponse{Status: "ok", Warnings: warnings})
}

func (h *GeofenceHandler) DeviceReady(c *gin.Context) {
	h.ack(c, h.commands.DeviceReady(), "device not ready")
}

func (h *GeofenceHandler) Ping(c *gin.Context) {
	h.ack(c, h.commands.Ping(), "ping failed")
}

func (h *GeofenceHandler) AddOrUpdate(c *gin.Context) {
	var defs []domain.Definition
	if err := c.ShouldBindJSON(&defs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid geofence list: " + err.Error()})
		return
	}
	h.ack(c, h.commands.AddOrUpdate(defs), "failed to store geofences")
}

func (h *GeofenceHandler) GetWatched(c *gin.Context) {
	defs, err := h.commands.GetWatched().Wait(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to fetch geofences")
		return
	}
	c.JSON(http.StatusOK, defs)
}

func (h *GeofenceHandler) Remove(c *gin.Context) {
	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id list"})
		return
	}
	h.ack(c, h.commands.Remove(ids), "failed to remove geofences")
}

func (h *GeofenceHandler) RemoveAll(c *gin.Context) {
	h.ack(c, h.commands.RemoveAll(), "failed to remove geofences")
}

func (h *GeofenceHandler) SetAppState(c *gin.Context) {
	var req appStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}
	state, err := domain.ParseAppState(req.State)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.commands.SetAppState(state)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": state.String()})
}

func (h *GeofenceHandler) ack(c *gin.Context, f *service.Future[struct{}], msg string) {
	if _, err := f.Wait(c.Request.Context()); err != nil {
		writeError(c, err, msg)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrWorkerStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": msg})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
