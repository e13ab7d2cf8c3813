package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/adboard/internal/advertisement"
	"github.com/hitoshi/adboard/internal/middleware"
	"github.com/hitoshi/adboard/internal/model"
)

// AdvertisementServiceInterface は広告ハンドラーが必要とするサービスインターフェース。
type AdvertisementServiceInterface interface {
	Create(ctx context.Context, actor *model.User, in advertisement.CreateInput) (*model.Advertisement, error)
	List(ctx context.Context, filter advertisement.ListFilter) ([]*model.Advertisement, error)
	Get(ctx context.Context, id int64) (*model.Advertisement, error)
	// Delete は所有者または管理者のみ実行できる。それ以外はForbiddenを返す。
	Delete(ctx context.Context, actor *model.User, id int64) error
}

// AdvertisementHandler は広告のHTTPハンドラー。
type AdvertisementHandler struct {
	service AdvertisementServiceInterface
}

// NewAdvertisementHandler はAdvertisementHandlerを生成する。
func NewAdvertisementHandler(service AdvertisementServiceInterface) *AdvertisementHandler {
	return &AdvertisementHandler{service: service}
}

type createAdvertisementRequest struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

type advertisementResponse struct {
	ID            int64     `json:"id"`
	Category      string    `json:"category"`
	OwnerID       int64     `json:"owner_id"`
	OwnerUsername string    `json:"owner_username"`
	Title         string    `json:"title"`
	Price         int64     `json:"price"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAdvertisementResponse(ad *model.Advertisement) advertisementResponse {
	return advertisementResponse{
		ID:            ad.ID,
		Category:      string(ad.Category),
		OwnerID:       ad.OwnerID,
		OwnerUsername: ad.OwnerUsername,
		Title:         ad.Title,
		Price:         ad.Price,
		Description:   ad.Description,
		CreatedAt:     ad.CreatedAt,
	}
}

// Create は認証済みユーザーの広告を登録する。
// POST /api/advertisements/create
func (h *AdvertisementHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return
	}

	var req createAdvertisementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	ad, err := h.service.Create(r.Context(), user, advertisement.CreateInput{
		Category:    model.Category(req.Category),
		Title:       req.Title,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAdvertisementResponse(ad))
}

// List は広告一覧を返す。category、limit、offsetで絞り込める。
// GET /api/advertisements
func (h *AdvertisementHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ads, err := h.service.List(r.Context(), advertisement.ListFilter{
		Category: model.Category(q.Get("category")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]advertisementResponse, 0, len(ads))
	for _, ad := range ads {
		resp = append(resp, toAdvertisementResponse(ad))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は広告を1件返す。
// GET /api/advertisements/{id}
func (h *AdvertisementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ad, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAdvertisementResponse(ad))
}

// Delete は広告を削除する。
// DELETE /api/advertisements/{id}
func (h *AdvertisementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return
	}

	id, err := pathID(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), user, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", "正の整数を指定してください")
	}
	return id, nil
}

// queryInt は空文字を0として整数のクエリパラメータを解析する。
func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError(name, "整数を指定してください")
	}
	return v, nil
}
