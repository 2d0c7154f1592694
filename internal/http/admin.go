package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sk3-portal/internal/http/middleware"
	"sk3-portal/internal/model"
	"sk3-portal/internal/repository"
	"sk3-portal/internal/views"
)

func (h *Handler) adminViews(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(views.ViewsFor(model.RoleAdmin)))
}

func (h *Handler) adminView(c *gin.Context) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	view, err := views.ParseViewID(c.Param("view"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
		return
	}
	q, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	snapshot, err := h.complaints.List(c.Request.Context(), actor, view, q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(snapshot))
}

func (h *Handler) assign(kind model.ComplaintKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := middleware.MustActor(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
			return
		}
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req model.AssignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		updated, err := h.complaints.Assign(c.Request.Context(), actor, kind, id, req.PersonnelID)
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse(updated))
	}
}

type notifyRequest struct {
	Message string `json:"message"`
}

func (h *Handler) notify(c *gin.Context) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if err := h.complaints.Notify(c.Request.Context(), actor, id, req.Message); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"status": "sent"}))
}

func (h *Handler) archive(kind model.ComplaintKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := middleware.MustActor(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
			return
		}
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := h.complaints.Archive(c.Request.Context(), actor, kind, id); err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse(gin.H{"status": "archived"}))
	}
}

func (h *Handler) actions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	kind := model.ComplaintKind(strings.ToLower(c.DefaultQuery("kind", string(model.ComplaintKindStandard))))
	if kind != model.ComplaintKindStandard && kind != model.ComplaintKindEmergency {
		c.JSON(http.StatusBadRequest, errorResponse("kind must be standard or emergency"))
		return
	}
	entries, err := h.complaints.Actions(c.Request.Context(), kind, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(entries))
}

func (h *Handler) createPersonnel(c *gin.Context) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	var in model.PersonnelInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	created, err := h.complaints.CreatePersonnel(c.Request.Context(), actor, in)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(created))
}

func (h *Handler) deletePersonnel(c *gin.Context) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.complaints.DeletePersonnel(c.Request.Context(), actor, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) approveAccount(c *gin.Context) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.complaints.ApprovePendingAccount(c.Request.Context(), actor, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"status": "approved"}))
}

func (h *Handler) driverByPlate(c *gin.Context) {
	driver, err := h.complaints.DriverByPlate(c.Request.Context(), c.Param("plate"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(driver))
}

func (h *Handler) recentActions(c *gin.Context) {
	filter, err := parseActionLogFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	entries, err := h.complaints.RecentActions(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(entries))
}

func parseActionLogFilter(c *gin.Context) (repository.ActionLogFilter, error) {
	filter := repository.ActionLogFilter{
		Kind:      model.ComplaintKind(strings.ToLower(c.Query("kind"))),
		ActorRole: model.Role(strings.ToLower(c.Query("actor_role"))),
	}
	for _, raw := range c.QueryArray("action") {
		filter.Actions = append(filter.Actions, model.Action(strings.ToUpper(raw)))
	}
	if raw := c.Query("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, errBadQuery("actor_id")
		}
		filter.ActorID = &id
	}
	for key, dst := range map[string]**time.Time{"from": &filter.DateFrom, "to": &filter.DateTo} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errBadQuery(key)
		}
		*dst = &ts
	}
	var err error
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = intQuery(c, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errBadQuery(key)
	}
	return n, nil
}

type errBadQuery string

func (e errBadQuery) Error() string {
	return "invalid " + string(e)
}
