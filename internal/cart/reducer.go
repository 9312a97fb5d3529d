package cart

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

// ActionType is the closed set of cart transitions.
type ActionType string

const (
	ActionAddItem        ActionType = "ADD_ITEM"
	ActionRemoveItem     ActionType = "REMOVE_ITEM"
	ActionUpdateQuantity ActionType = "UPDATE_QUANTITY"
	ActionClearCart      ActionType = "CLEAR_CART"
	ActionLoadCart       ActionType = "LOAD_CART"
)

// IsValid reports whether the value is a known action.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionAddItem, ActionRemoveItem, ActionUpdateQuantity, ActionClearCart, ActionLoadCart:
		return true
	}
	return false
}

// Item is a product line in the cart. MaxPerCart is captured from the
// catalogue when the line is added or updated.
type Item struct {
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Quantity   int       `json:"quantity"`
	MaxPerCart int       `json:"max_per_cart"`
	ImageURL   *string   `json:"image_url,omitempty"`
}

// State is an immutable cart snapshot; Reduce always returns a new value.
type State struct {
	Items []Item `json:"items"`
}

// Action carries the payload of one transition. Item is used by ADD_ITEM,
// ProductID and Quantity by REMOVE_ITEM/UPDATE_QUANTITY, Items by LOAD_CART.
type Action struct {
	Type      ActionType
	Item      Item
	ProductID uuid.UUID
	Quantity  int
	Items     []Item
}

// Total is the sum of price times quantity over every line.
func (s State) Total() int64 {
	var total int64
	for _, item := range s.Items {
		total += item.PriceCents * int64(item.Quantity)
	}
	return total
}

// Count is the number of units in the cart.
func (s State) Count() int {
	count := 0
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

func (s State) find(productID uuid.UUID) int {
	return slices.IndexFunc(s.Items, func(item Item) bool { return item.ProductID == productID })
}

// Reduce applies action to state without mutating it.
func Reduce(state State, action Action) (State, error) {
	items := slices.Clone(state.Items)

	switch action.Type {
	case ActionAddItem:
		add := action.Item
		if add.ProductID == uuid.Nil {
			return state, pkgerrors.New(pkgerrors.CodeValidation, "produto é obrigatório")
		}
		if add.Quantity == 0 {
			add.Quantity = 1
		}
		if add.Quantity < 0 {
			return state, pkgerrors.New(pkgerrors.CodeValidation, "quantidade deve ser pelo menos 1")
		}
		idx := state.find(add.ProductID)
		quantity := add.Quantity
		if idx >= 0 {
			quantity += items[idx].Quantity
		}
		if err := checkBounds(quantity, add.MaxPerCart); err != nil {
			return state, err
		}
		if idx >= 0 {
			items[idx].Quantity = quantity
			items[idx].MaxPerCart = add.MaxPerCart
			items[idx].PriceCents = add.PriceCents
		} else {
			add.Quantity = quantity
			items = append(items, add)
		}
		return State{Items: items}, nil

	case ActionRemoveItem:
		items = slices.DeleteFunc(items, func(item Item) bool { return item.ProductID == action.ProductID })
		return State{Items: items}, nil

	case ActionUpdateQuantity:
		idx := state.find(action.ProductID)
		if idx < 0 {
			return state, pkgerrors.New(pkgerrors.CodeNotFound, "produto não está no carrinho")
		}
		if action.Quantity <= 0 {
			return State{Items: slices.Delete(items, idx, idx+1)}, nil
		}
		if err := checkBounds(action.Quantity, items[idx].MaxPerCart); err != nil {
			return state, err
		}
		items[idx].Quantity = action.Quantity
		return State{Items: items}, nil

	case ActionClearCart:
		return State{Items: []Item{}}, nil

	case ActionLoadCart:
		loaded := make([]Item, 0, len(action.Items))
		for _, item := range action.Items {
			if item.ProductID == uuid.Nil || item.Quantity <= 0 {
				continue
			}
			loaded = append(loaded, item)
		}
		return State{Items: loaded}, nil
	}
	return state, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("ação de carrinho desconhecida: %s", action.Type))
}

// checkBounds enforces 1 <= quantity <= limit.
func checkBounds(quantity, limit int) error {
	if limit <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Este produto já atingiu a meta de presentes")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantidade deve ser pelo menos 1")
	}
	if quantity > limit {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Só restam %d unidade(s) disponível(is) deste produto", limit)).
			WithDetails(map[string]any{"max_per_cart": limit})
	}
	return nil
}
