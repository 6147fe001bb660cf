package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

type momentStore interface {
	Create(ctx context.Context, ownerID uint, req models.CreateMomentRequest) (*models.MomentResponse, error)
	Feed(ctx context.Context, viewerID uint, params models.PageParams) (*services.MomentPage, error)
	Mine(ctx context.Context, ownerID uint, params models.PageParams) (*services.MomentPage, error)
	Get(ctx context.Context, viewerID uint, id string) (*models.MomentResponse, error)
	Viewers(ctx context.Context, ownerID uint, id string) ([]models.MomentViewer, error)
	ToggleLike(ctx context.Context, viewerID uint, id string) (*models.LikeToggleResult, error)
	Comment(ctx context.Context, viewerID uint, id, text string) (*models.MomentComment, error)
	Delete(ctx context.Context, ownerID uint, id string) error
}

// MomentHandler serves 24h moments
type MomentHandler struct {
	moments momentStore
}

func NewMomentHandler(moments momentStore) *MomentHandler {
	return &MomentHandler{moments: moments}
}

func (h *MomentHandler) RegisterMomentRoutes(g *echo.Group) {
	g.POST("/moments", h.CreateMoment)
	g.GET("/moments/feed", h.GetFeed)
	g.GET("/moments/my", h.GetMyMoments)
	g.GET("/moments/:id", h.GetMoment)
	g.GET("/moments/:id/views", h.GetViewers)
	g.POST("/moments/:id/like", h.ToggleLike)
	g.POST("/moments/:id/comments", h.AddComment)
	g.DELETE("/moments/:id", h.DeleteMoment)
}

func (h *MomentHandler) CreateMoment(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req models.CreateMomentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := h.moments.Create(c.Request().Context(), userID, req)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, m)
}

// GetFeed returns visible moments of the caller and everyone they follow
func (h *MomentHandler) GetFeed(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	page, err := h.moments.Feed(c.Request().Context(), userID, pageParams(c))
	if err != nil {
		return err
	}
	return okPage(c, page.Moments, models.NewPagination(page.Params, page.Total))
}

func (h *MomentHandler) GetMyMoments(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	page, err := h.moments.Mine(c.Request().Context(), userID, pageParams(c))
	if err != nil {
		return err
	}
	return okPage(c, page.Moments, models.NewPagination(page.Params, page.Total))
}

func (h *MomentHandler) GetMoment(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	m, err := h.moments.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, m)
}

func (h *MomentHandler) GetViewers(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	viewers, err := h.moments.Viewers(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, viewers)
}

func (h *MomentHandler) ToggleLike(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	res, err := h.moments.ToggleLike(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, res)
}

func (h *MomentHandler) AddComment(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req models.CreateMomentCommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	comment, err := h.moments.Comment(c.Request().Context(), userID, c.Param("id"), req.Text)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, comment)
}

func (h *MomentHandler) DeleteMoment(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.moments.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return err
	}
	return okMessage(c, "Moment deleted")
}
