package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-mobile/pkg/enums"
	"github.com/angelmondragon/packfinderz-mobile/pkg/types"
)

// Store is the wire representation of a storefront.
type Store struct {
	ID          uuid.UUID       `json:"id"`
	Type        enums.StoreType `json:"type"`
	CompanyName string          `json:"company_name"`
	Description *string         `json:"description,omitempty"`
	Phone       *string         `json:"phone,omitempty"`
	Email       *string         `json:"email,omitempty"`
	Address     types.Address   `json:"address"`
	LogoURL     *string         `json:"logo_url,omitempty"`
}

// StorePayload carries the mutable store fields for create/update calls.
type StorePayload struct {
	Type        enums.StoreType `json:"type,omitempty"`
	CompanyName string          `json:"company_name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Phone       *string         `json:"phone,omitempty"`
	Email       *string         `json:"email,omitempty"`
	Address     *types.Address  `json:"address,omitempty"`
	LogoURL     *string         `json:"logo_url,omitempty"`
}

// FetchStore loads one store by id.
func (c *Client) FetchStore(ctx context.Context, id uuid.UUID) (*Store, error) {
	var store Store
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/stores/%s", id), nil, &store); err != nil {
		return nil, err
	}
	return &store, nil
}

// ListStores loads every store visible to the client.
func (c *Client) ListStores(ctx context.Context) ([]Store, error) {
	var stores []Store
	if err := c.do(ctx, http.MethodGet, "/stores", nil, &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

// CreateStore registers a new store with a caller-assigned id so offline
// creates replay idempotently.
func (c *Client) CreateStore(ctx context.Context, id uuid.UUID, payload StorePayload) (*Store, error) {
	var store Store
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/stores/%s", id), payload, &store); err != nil {
		return nil, err
	}
	return &store, nil
}

// UpdateStore applies a partial update to an existing store.
func (c *Client) UpdateStore(ctx context.Context, id uuid.UUID, payload StorePayload) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/stores/%s", id), payload, nil)
}

// DeleteStore removes a store.
func (c *Client) DeleteStore(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/stores/%s", id), nil, nil)
}
