package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sk3-portal/internal/gateway"
	"sk3-portal/internal/http/middleware"
	"sk3-portal/internal/lifecycle"
	"sk3-portal/internal/model"
	"sk3-portal/internal/poller"
	"sk3-portal/internal/service"
	"sk3-portal/internal/validation"
	"sk3-portal/internal/views"
)

const (
	draftCookie   = "sk3_draft"
	maxImageBytes = 10 << 20
)

type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

type Handler struct {
	complaints *service.ComplaintService
	taskforce  *service.TaskforceService
	auth       *service.AuthService
	cookie     CookieConfig
	log        zerolog.Logger
}

func NewHandler(
	complaints *service.ComplaintService,
	taskforce *service.TaskforceService,
	auth *service.AuthService,
	cookie CookieConfig,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		complaints: complaints,
		taskforce:  taskforce,
		auth:       auth,
		cookie:     cookie,
		log:        log,
	}
}

func (h *Handler) login(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds model.Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}

		previous := h.auth.SessionID(middleware.SessionToken(c, h.cookie.Name))
		result, err := h.auth.Login(c.Request.Context(), role, previous, creds)
		if err != nil {
			h.handleError(c, err)
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookie.Name, result.Token, int(h.cookie.TTL.Seconds()), "/", "", h.cookie.Secure, true)
		c.JSON(http.StatusOK, successResponse(result))
	}
}

func (h *Handler) logout(c *gin.Context) {
	if sid := h.auth.SessionID(middleware.SessionToken(c, h.cookie.Name)); sid != "" {
		if err := h.auth.Logout(c.Request.Context(), sid); err != nil {
			h.handleError(c, err)
			return
		}
	}
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.JSON(http.StatusOK, successResponse(gin.H{"status": "logged_out"}))
}

type locationRequest struct {
	Source    validation.Source `json:"source"`
	Latitude  *float64          `json:"latitude" binding:"required"`
	Longitude *float64          `json:"longitude" binding:"required"`
	Label     string            `json:"label"`
}

func (h *Handler) captureLocation(c *gin.Context, draftKey string) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	point, err := h.complaints.CaptureLocation(draftKey, req.Source, *req.Latitude, *req.Longitude, req.Label)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(point))
}

// draftKey identifies the anonymous emergency form across its location and
// submit requests.
func (h *Handler) draftKey(c *gin.Context) string {
	if key, err := c.Cookie(draftCookie); err == nil && key != "" {
		return key
	}
	key := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(draftCookie, key, int(time.Hour.Seconds()), "/", "", h.cookie.Secure, true)
	return key
}

func (h *Handler) emergencyLocation(c *gin.Context) {
	h.captureLocation(c, "emergency:"+h.draftKey(c))
}

func (h *Handler) emergencyReport(c *gin.Context) {
	var in model.ReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	created, err := h.complaints.SubmitEmergency(c.Request.Context(), "emergency:"+h.draftKey(c), in)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(created))
}

func (h *Handler) commuterMe(c *gin.Context) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{
		"commuter":   actor.Identity.Commuter,
		"report":     h.complaints.ReportDefaults(actor),
		"categories": model.Categories(),
	}))
}

func (h *Handler) commuterLocation(c *gin.Context) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	h.captureLocation(c, "commuter:"+actor.SessionID)
}

func (h *Handler) commuterReport(c *gin.Context) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	var in model.ReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	created, err := h.complaints.SubmitReport(c.Request.Context(), actor, "commuter:"+actor.SessionID, in)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(created))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var (
		validationErr *lifecycle.ValidationError
		authErr       *lifecycle.AuthorizationError
		apiErr        *gateway.APIError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "fields": validationErr.Fields})
	case errors.As(err, &authErr):
		role := model.Role(authErr.Role)
		if role.Valid() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "redirect": middleware.LoginPath(role)})
			return
		}
		c.JSON(http.StatusUnauthorized, errorResponse(err.Error()))
	case errors.Is(err, lifecycle.ErrMissingSelection), errors.Is(err, lifecycle.ErrMissingImage):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, lifecycle.ErrOcrExtraction):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrPermissionDenied), errors.Is(err, views.ErrViewNotAllowed):
		c.JSON(http.StatusForbidden, errorResponse(service.ErrPermissionDenied.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			msg := apiErr.Message
			if msg == "" {
				msg = http.StatusText(apiErr.StatusCode)
			}
			c.JSON(apiErr.StatusCode, errorResponse(msg))
			return
		}
		h.log.Error().Err(err).Msg("api error")
		c.JSON(http.StatusBadGateway, errorResponse("upstream service failed"))
	case errors.Is(err, gateway.ErrNetwork):
		h.log.Error().Err(err).Msg("api unreachable")
		c.JSON(http.StatusBadGateway, errorResponse("upstream service unreachable"))
	case errors.Is(err, poller.ErrStopped):
		c.JSON(http.StatusConflict, errorResponse("dashboard was closed, reload the page"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse("invalid "+name))
		return 0, false
	}
	return id, true
}

// parseListQuery returns nil when the request carries no filter parameters so
// the view keeps its current filter.
func parseListQuery(c *gin.Context) (*model.ListQuery, error) {
	values := c.Request.URL.Query()
	present := false
	for _, key := range []string{"timeframe", "month", "start_date", "end_date", "include_archived"} {
		if values.Has(key) {
			present = true
			break
		}
	}
	if !present {
		return nil, nil
	}
	q, err := model.ParseListQuery(values)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

type responseEnvelope struct {
	Data interface{} `json:"data"`
}

func successResponse(data interface{}) responseEnvelope {
	return responseEnvelope{Data: data}
}

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}
