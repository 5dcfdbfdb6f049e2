package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"github.com/hitoshi/followfeed/internal/model"
	"github.com/hitoshi/followfeed/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, authorID int64, in model.PostInput) (*model.Post, error)
	List(ctx context.Context) ([]model.Post, error)
	Detail(ctx context.Context, postID int64) (*model.Post, error)
	// Edit は投稿者のみ部分更新できる。
	Edit(ctx context.Context, userID, postID int64, in model.PostInput) (*model.Post, error)
	// Delete は投稿者のみ削除できる。
	Delete(ctx context.Context, userID, postID int64) error
	ToggleLike(ctx context.Context, userID, postID int64) (*post.LikeResult, error)
}

// PostHandler は投稿管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// postRequest は投稿の作成・更新リクエストのボディ。
// PATCHでは省略したフィールドは変更しない。
type postRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (req postRequest) toInput() model.PostInput {
	return model.PostInput{Title: req.Title, Content: req.Content}
}

// Create は投稿を作成する。
// POST /api/posts/create/
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.NewPostView(*p))
}

// List は全投稿をcreated_at降順で返す。
// GET /api/posts/list/
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(posts, func(p model.Post, _ int) model.PostView {
		return model.NewPostView(p)
	}))
}

// Detail は投稿詳細を返す。
// GET /api/posts/list/{id}/
func (h *PostHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Detail(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.NewPostView(*p))
}

// Edit は投稿を部分更新する。
// PATCH /api/posts/edit/{id}/
func (h *PostHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Edit(r.Context(), userID, id, req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.NewPostView(*p))
}

// Delete は投稿を削除する。
// DELETE /api/posts/delete/{id}/
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Like はいいねを切り替える。
// POST /api/posts/like/{id}/
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	result, err := h.service.ToggleLike(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	msg := fmt.Sprintf("Like removed by %s!", result.Username)
	if result.Liked {
		msg = fmt.Sprintf("Post liked by %s!", result.Username)
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}
