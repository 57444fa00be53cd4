package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mariselaquino/tradepost-backend/api/middleware"
	"github.com/mariselaquino/tradepost-backend/internal/disputes"
	"github.com/mariselaquino/tradepost-backend/internal/orders"
	"github.com/mariselaquino/tradepost-backend/pkg/enums"
	pkgerrors "github.com/mariselaquino/tradepost-backend/pkg/errors"
	"github.com/mariselaquino/tradepost-backend/pkg/pagination"

	"github.com/mariselaquino/tradepost-backend/api/validators"
)

// requireUserID parses the authenticated user id out of the request context.
func requireUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func requireRole(r *http.Request) (enums.ActorRole, error) {
	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor role missing")
	}
	return role, nil
}

func storeIDFromRequest(r *http.Request) (*uuid.UUID, error) {
	raw := middleware.StoreIDFromContext(r.Context())
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid store id")
	}
	return &id, nil
}

// orderActor builds the lifecycle actor for order operations.
func orderActor(r *http.Request) (orders.Actor, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return orders.Actor{}, err
	}
	role, err := requireRole(r)
	if err != nil {
		return orders.Actor{}, err
	}
	return orders.Actor{ID: &userID, Role: role}, nil
}

// disputeActor builds the dispute actor, carrying the vendor store when the
// token has one.
func disputeActor(r *http.Request) (disputes.Actor, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return disputes.Actor{}, err
	}
	role, err := requireRole(r)
	if err != nil {
		return disputes.Actor{}, err
	}
	storeID, err := storeIDFromRequest(r)
	if err != nil {
		return disputes.Actor{}, err
	}
	return disputes.Actor{ID: &userID, StoreID: storeID, Role: role}, nil
}

// pageFromRequest reads offset pagination from the query string.
func pageFromRequest(r *http.Request) (pagination.Page, error) {
	number, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<30)
	if err != nil {
		return pagination.Page{}, err
	}
	size, err := validators.ParseQueryInt(r, "page_size", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Page{}, err
	}
	return pagination.NewPage(number, size), nil
}
