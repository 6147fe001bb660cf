package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/riseup-connect/backend/internal/apperrors"
	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	comments repositories.CommentRepository
	posts    repositories.PostRepository
	users    repositories.UserRepository
	notifier notifier
}

func NewCommentHandler(comments repositories.CommentRepository, posts repositories.PostRepository, users repositories.UserRepository, n notifier) *CommentHandler {
	return &CommentHandler{comments: comments, posts: posts, users: users, notifier: n}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/comments", h.CreateComment)
	g.GET("/posts/:post_id/comments", h.GetCommentsByPostID)
	g.DELETE("/comments/:id", h.DeleteComment)
}

// CommentResponse is a comment with its author
type CommentResponse struct {
	models.Comment
	Author models.UserCompact `json:"author"`
}

// CreateComment comments on a post. The author gets a comment notification and
// every @mentioned user a mention.
func (h *CommentHandler) CreateComment(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return apperrors.Validation("content is required")
	}

	ctx := c.Request().Context()
	post, err := h.posts.GetPostByID(ctx, c.Param("post_id"))
	if err != nil {
		return storeErr(err, "Post not found")
	}
	postID := post.ID.Hex()

	comment := &models.Comment{PostID: postID, UserID: userID, Content: content}
	if err := h.comments.CreateComment(ctx, comment); err != nil {
		return apperrors.Internal(err)
	}
	if err := h.posts.IncrementCommentsCount(ctx, postID, 1); err != nil {
		return apperrors.Internal(err)
	}

	subject := postSubject(postID)
	h.notifier.Notify(ctx, post.AuthorID, userID, models.NotificationComment, subject, content)
	h.notifier.NotifyMentions(ctx, userID, content, subject)

	return ok(c, http.StatusCreated, comment)
}

// GetCommentsByPostID lists a post's comments, oldest first
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := h.posts.GetPostByID(ctx, c.Param("post_id"))
	if err != nil {
		return storeErr(err, "Post not found")
	}

	params := pageParams(c)
	comments, total, err := h.comments.GetCommentsByPostID(ctx, post.ID.Hex(), int(params.Skip()), params.Limit)
	if err != nil {
		return apperrors.Internal(err)
	}

	ids := make([]uint, 0, len(comments))
	for _, cm := range comments {
		ids = append(ids, cm.UserID)
	}
	users, err := h.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return apperrors.Internal(err)
	}
	authors := make(map[uint]models.UserCompact, len(users))
	for i := range users {
		authors[users[i].ID] = users[i].ToCompact()
	}

	out := make([]CommentResponse, 0, len(comments))
	for _, cm := range comments {
		author, found := authors[cm.UserID]
		if !found {
			author = models.DeletedUserCompact(cm.UserID)
		}
		out = append(out, CommentResponse{Comment: cm, Author: author})
	}
	return okPage(c, out, models.NewPagination(params, total))
}

// DeleteComment deletes one of the caller's comments
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	id, err := uintParam(c, "id", "comment ID")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	comment, err := h.comments.GetCommentByID(ctx, id)
	if err != nil {
		return storeErr(err, "Comment not found")
	}
	if comment.UserID != userID {
		return apperrors.Forbidden("You are not authorized to delete this comment")
	}
	if err := h.comments.DeleteComment(ctx, id); err != nil {
		return storeErr(err, "Comment not found")
	}
	if err := h.posts.IncrementCommentsCount(ctx, comment.PostID, -1); err != nil {
		return apperrors.Internal(err)
	}
	return okMessage(c, "Comment deleted")
}
