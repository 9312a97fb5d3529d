package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/redis"
)

// DefaultTTL is how long an untouched cart survives in Redis.
const DefaultTTL = 30 * 24 * time.Hour

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type kvStore interface {
	redis.KV
	CartKey(cartID string) string
}

type productLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// LineRequest references a product by id.
type LineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// ActionRequest is the wire form of a cart transition.
type ActionRequest struct {
	Type      ActionType    `json:"type" validate:"required"`
	ProductID uuid.UUID     `json:"product_id"`
	Quantity  int           `json:"quantity"`
	Items     []LineRequest `json:"items"`
}

// View is the cart returned to clients.
type View struct {
	CartID     string `json:"cart_id"`
	Items      []Item `json:"items"`
	TotalCents int64  `json:"total_cents"`
	Count      int    `json:"count"`
}

type Service struct {
	store    kvStore
	products productLookup
	ttl      time.Duration
}

func NewService(store kvStore, products productLookup, ttl time.Duration) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, products: products, ttl: ttl}, nil
}

func (s *Service) Get(ctx context.Context, cartID string) (*View, error) {
	state, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return view(cartID, state), nil
}

// Apply loads the cart once, reduces the action against fresh catalogue
// bounds and persists the resulting state.
func (s *Service) Apply(ctx context.Context, cartID string, req ActionRequest) (*View, error) {
	if !req.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("ação de carrinho desconhecida: %s", req.Type))
	}
	state, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	action, err := s.buildAction(ctx, state, req)
	if err != nil {
		return nil, err
	}
	next, err := Reduce(state, action)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, cartID, next); err != nil {
		return nil, err
	}
	return view(cartID, next), nil
}

func (s *Service) buildAction(ctx context.Context, state State, req ActionRequest) (Action, error) {
	action := Action{Type: req.Type, ProductID: req.ProductID, Quantity: req.Quantity}

	switch req.Type {
	case ActionAddItem:
		products, err := s.lookup(ctx, []uuid.UUID{req.ProductID})
		if err != nil {
			return action, err
		}
		product, ok := products[req.ProductID]
		if !ok || !product.IsActive {
			return action, pkgerrors.New(pkgerrors.CodeNotFound, "produto não encontrado")
		}
		action.Item = itemFromProduct(product, req.Quantity)

	case ActionUpdateQuantity:
		if req.Quantity <= 0 {
			return action, nil
		}
		products, err := s.lookup(ctx, []uuid.UUID{req.ProductID})
		if err != nil {
			return action, err
		}
		// bounds follow the live catalogue, not the saved snapshot
		if product, ok := products[req.ProductID]; ok {
			if idx := state.find(req.ProductID); idx >= 0 {
				state.Items[idx].MaxPerCart = product.MaxPerCart()
			}
		}

	case ActionLoadCart:
		ids := make([]uuid.UUID, 0, len(req.Items))
		for _, line := range req.Items {
			ids = append(ids, line.ProductID)
		}
		products, err := s.lookup(ctx, ids)
		if err != nil {
			return action, err
		}
		for _, line := range req.Items {
			product, ok := products[line.ProductID]
			if !ok || !product.IsActive {
				continue
			}
			item := itemFromProduct(product, line.Quantity)
			if item.Quantity > item.MaxPerCart {
				item.Quantity = item.MaxPerCart
			}
			action.Items = append(action.Items, item)
		}
	}
	return action, nil
}

func (s *Service) lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	return products, nil
}

func (s *Service) load(ctx context.Context, cartID string) (State, error) {
	key, err := s.key(cartID)
	if err != nil {
		return State{}, err
	}
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return State{Items: []Item{}}, nil
		}
		return State{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// corrupt payloads reset the cart
		return State{Items: []Item{}}, nil
	}
	return state, nil
}

func (s *Service) save(ctx context.Context, cartID string, state State) error {
	key, err := s.key(cartID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(state)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.store.Set(ctx, key, body, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

func (s *Service) key(cartID string) (string, error) {
	cartID = strings.TrimSpace(cartID)
	if !cartIDPattern.MatchString(cartID) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "identificador de carrinho inválido")
	}
	return s.store.CartKey(cartID), nil
}

func itemFromProduct(product models.Product, quantity int) Item {
	return Item{
		ProductID:  product.ID,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Quantity:   quantity,
		MaxPerCart: product.MaxPerCart(),
		ImageURL:   product.ImageURL,
	}
}

func view(cartID string, state State) *View {
	items := state.Items
	if items == nil {
		items = []Item{}
	}
	return &View{
		CartID:     strings.TrimSpace(cartID),
		Items:      items,
		TotalCents: state.Total(),
		Count:      state.Count(),
	}
}
