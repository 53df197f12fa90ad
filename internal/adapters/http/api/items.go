package api

import (
	"context"
	"net/http"

	"github.com/okian/paramapi/internal/domain/model"
)

// ItemDependencies defines the item operations the handlers need.
type ItemDependencies interface {
	CreateItem(ctx context.Context, item model.Item) (model.Item, error)
	SearchItems(ctx context.Context, q model.ItemQuery) ([]model.Item, error)
}

type itemBody struct {
	Name        *string  `json:"name" validate:"required"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"required,gt=0"`
	Tags        []string `json:"tags"`
}

func (b itemBody) item() model.Item {
	it := model.Item{Description: b.Description, Tags: b.Tags}
	if b.Name != nil {
		it.Name = *b.Name
	}
	if b.Price != nil {
		it.Price = *b.Price
	}
	return it.Clone()
}

type createItemJSONRequest struct {
	Body itemBody `body:"json"`
}

type createItemFormRequest struct {
	Name        string  `form:"name"`
	Description *string `form:"description"`
	Price       float64 `form:"price" validate:"gt=0"`
}

type searchRequest struct {
	Q        *string  `query:"q" validate:"omitempty,max=50"`
	PriceMin *float64 `query:"price_min" validate:"omitempty,gte=0"`
	PriceMax *float64 `query:"price_max" validate:"omitempty,gt=0"`
}

type itemResponse struct {
	Message string     `json:"message"`
	Item    model.Item `json:"item"`
}

type searchResponse struct {
	Results []model.Item `json:"results"`
}

// ItemsHandler handles item creation and search.
type ItemsHandler struct {
	deps   ItemDependencies
	binder *requestBinder
}

// NewItemsHandler creates a new items handler.
func NewItemsHandler(deps ItemDependencies, rb *requestBinder) *ItemsHandler {
	return &ItemsHandler{deps: deps, binder: rb}
}

// HandleCreateItemForm handles POST /items/form requests.
func (h *ItemsHandler) HandleCreateItemForm(w http.ResponseWriter, r *http.Request) {
	var req createItemFormRequest
	if !h.binder.bind(w, r, &req) {
		return
	}
	h.create(w, r, model.Item{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}, "Item created from form")
}

// HandleCreateItemJSON handles POST /items/json requests.
func (h *ItemsHandler) HandleCreateItemJSON(w http.ResponseWriter, r *http.Request) {
	var req createItemJSONRequest
	if !h.binder.bind(w, r, &req) {
		return
	}
	h.create(w, r, req.Body.item(), "Item created from JSON")
}

func (h *ItemsHandler) create(w http.ResponseWriter, r *http.Request, item model.Item, msg string) {
	created, err := h.deps.CreateItem(r.Context(), item)
	if err != nil {
		writeServiceError(r.Context(), h.binder.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Message: msg, Item: created})
}

// HandleSearch handles GET /search requests.
func (h *ItemsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !h.binder.bind(w, r, &req) {
		return
	}
	items, err := h.deps.SearchItems(r.Context(), model.ItemQuery{
		Q:        req.Q,
		PriceMin: req.PriceMin,
		PriceMax: req.PriceMax,
	})
	if err != nil {
		writeServiceError(r.Context(), h.binder.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: items})
}
