package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// CartLine is the wire representation of a cart row.
type CartLine struct {
	CartID         uuid.UUID `json:"cart_id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductSKU     string    `json:"product_sku"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	FeaturedImage  *string   `json:"featured_image,omitempty"`
}

// FetchCartLines loads every line of the given cart.
func (c *Client) FetchCartLines(ctx context.Context, cartID uuid.UUID) ([]CartLine, error) {
	var lines []CartLine
	path := fmt.Sprintf("/carts/%s/lines", cartID)
	if err := c.do(ctx, http.MethodGet, path, nil, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// PutCartLine upserts a line by its composite key. The server applies
// create-or-replace semantics, so one call covers both pending states.
func (c *Client) PutCartLine(ctx context.Context, line CartLine) error {
	path := fmt.Sprintf("/carts/%s/lines/%s", line.CartID, line.ProductID)
	return c.do(ctx, http.MethodPut, path, line, nil)
}

// DeleteCartLine removes a line by its composite key.
func (c *Client) DeleteCartLine(ctx context.Context, cartID, productID uuid.UUID) error {
	path := fmt.Sprintf("/carts/%s/lines/%s", cartID, productID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
