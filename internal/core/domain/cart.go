package domain

import "time"

// CartLine is one (user, product, quantity) entry in a user's cart.
// Lines are keyed uniquely by (UserID, ProductID); adding a product that
// is already present increments the existing line instead of duplicating it.
type CartLine struct {
	UserID    string
	ProductID int64
	Quantity  int
	CreatedAt time.Time
}

func NewCartLine(userID string, productID int64, quantity int) (CartLine, error) {
	if quantity < 1 {
		return CartLine{}, ErrInvalidQuantity
	}
	return CartLine{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: time.Now(),
	}, nil
}
