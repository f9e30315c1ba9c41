// Package api is the management HTTP API of the settings daemon.
package api

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/evervolv/evsettings/pkg/hardware"
	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/sdk"
	"github.com/evervolv/evsettings/pkg/settings"
)

type Handler struct {
	Store    sdk.Store
	Hardware *hardware.Manager
	Log      zerolog.Logger
}

// Register mounts the API routes under /api.
func (h *Handler) Register(r gin.IRouter) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/users/:user/:ns", h.List)
		apiGroup.GET("/users/:user/:ns/:name", h.Get)
		apiGroup.PUT("/users/:user/:ns/:name", h.Put)
		apiGroup.DELETE("/users/:user/:ns/:name", h.Delete)
		apiGroup.POST("/validate/:ns", h.Validate)
		apiGroup.GET("/hardware", h.HardwareFeatures)
		apiGroup.PUT("/hardware/:feature", h.SetHardwareFeature)
		apiGroup.GET("/vibrator", h.Vibrator)
		apiGroup.PUT("/vibrator", h.SetVibrator)
		apiGroup.GET("/gestures", h.Gestures)
		apiGroup.PUT("/gestures/:id", h.SetGesture)
	}
}

// CORS allows the management UI to be served from another origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// target parses the :user and :ns path parameters.
func target(c *gin.Context) (schema.UserID, schema.Namespace, bool) {
	user, err := schema.ParseUserID(c.Param("user"))
	if err != nil {
		badRequest(c, err)
		return 0, "", false
	}
	ns, err := schema.ParseNamespace(c.Param("ns"))
	if err != nil {
		badRequest(c, err)
		return 0, "", false
	}
	return user, ns, true
}

func (h *Handler) List(c *gin.Context) {
	user, ns, ok := target(c)
	if !ok {
		return
	}
	all, err := h.Store.List(c.Request.Context(), ns, user)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (h *Handler) Get(c *gin.Context) {
	user, ns, ok := target(c)
	if !ok {
		return
	}
	name := c.Param("name")
	value, found, err := h.Store.Call(c.Request.Context(), ns, name, user)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "setting not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":  name,
		"value": value,
	})
}

func (h *Handler) Put(c *gin.Context) {
	user, ns, ok := target(c)
	if !ok {
		return
	}
	name := c.Param("name")

	var input struct {
		Value *string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	if c.Query("validate") == "true" {
		known, valid := settings.Validate(ns, name, *input.Value)
		if !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no validator for " + name})
			return
		}
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value for " + name})
			return
		}
	}

	if err := h.Store.Put(c.Request.Context(), ns, name, *input.Value, user); err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) Delete(c *gin.Context) {
	user, ns, ok := target(c)
	if !ok {
		return
	}
	if err := h.Store.Delete(c.Request.Context(), ns, c.Param("name"), user); err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type validity struct {
	Known bool `json:"known"`
	Valid bool `json:"valid"`
}

// Validate checks a batch of name/value pairs against the namespace's validators.
func (h *Handler) Validate(c *gin.Context) {
	ns, err := schema.ParseNamespace(c.Param("ns"))
	if err != nil {
		badRequest(c, err)
		return
	}
	var input map[string]string
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	out := make(map[string]validity, len(input))
	for name, value := range input {
		known, valid := settings.Validate(ns, name, value)
		out[name] = validity{Known: known, Valid: valid}
	}
	c.JSON(http.StatusOK, out)
}

type featureState struct {
	Name      string `json:"name"`
	Supported bool   `json:"supported"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

func (h *Handler) HardwareFeatures(c *gin.Context) {
	ctx := c.Request.Context()
	mask := h.Hardware.SupportedFeatures(ctx)
	features := make([]featureState, 0, len(hardware.Features))
	for _, f := range hardware.Features {
		st := featureState{Name: f.String(), Supported: hardware.Has(mask, f)}
		if st.Supported && f.IsBoolean() {
			enabled, _ := h.Hardware.Get(ctx, f)
			st.Enabled = &enabled
		}
		features = append(features, st)
	}
	c.JSON(http.StatusOK, gin.H{
		"supported": mask,
		"features":  features,
	})
}

func (h *Handler) SetHardwareFeature(c *gin.Context) {
	f, ok := hardware.ParseFeature(c.Param("feature"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feature"})
		return
	}
	if !f.IsBoolean() {
		badRequest(c, hardware.ErrNotBoolean)
		return
	}

	var input struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if !h.Hardware.IsSupported(ctx, f) {
		c.JSON(http.StatusNotFound, gin.H{"error": "feature not supported"})
		return
	}
	applied, err := h.Hardware.Set(ctx, f, *input.Enabled)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": applied})
}

func (h *Handler) Vibrator(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.Hardware.IsSupported(ctx, hardware.Vibrator) {
		c.JSON(http.StatusNotFound, gin.H{"error": "feature not supported"})
		return
	}
	c.JSON(http.StatusOK, h.Hardware.VibratorIntensity(ctx))
}

func (h *Handler) SetVibrator(c *gin.Context) {
	var input struct {
		Intensity *int `json:"intensity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if !h.Hardware.IsSupported(ctx, hardware.Vibrator) {
		c.JSON(http.StatusNotFound, gin.H{"error": "feature not supported"})
		return
	}
	in := h.Hardware.VibratorIntensity(ctx)
	if level := *input.Intensity; level < in.Min || level > in.Max {
		badRequest(c, fmt.Errorf("%w: %d not in [%d, %d]", hardware.ErrIntensityRange, level, in.Min, in.Max))
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": h.Hardware.SetVibratorIntensity(ctx, *input.Intensity)})
}

func (h *Handler) Gestures(c *gin.Context) {
	gestures := h.Hardware.TouchscreenGestures(c.Request.Context())
	if gestures == nil {
		gestures = []hardware.Gesture{}
	}
	c.JSON(http.StatusOK, gin.H{"gestures": gestures})
}

func (h *Handler) SetGesture(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return
	}
	var input struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	gestures := h.Hardware.TouchscreenGestures(ctx)
	idx := slices.IndexFunc(gestures, func(g hardware.Gesture) bool { return g.ID == id })
	if idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown gesture"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": h.Hardware.SetTouchscreenGestureEnabled(ctx, gestures[idx], *input.Enabled)})
}
