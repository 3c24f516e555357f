package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/middleware"
	"github.com/angelmondragon/settlement-engine/api/validators"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
	"github.com/angelmondragon/settlement-engine/pkg/types"
)

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

func requireActor(r *http.Request) (types.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return actor, nil
}

// vendorActor returns the caller and the vendor it acts for.
func vendorActor(r *http.Request) (types.Actor, uuid.UUID, error) {
	actor, err := requireActor(r)
	if err != nil {
		return types.Actor{}, uuid.Nil, err
	}
	if actor.VendorID == nil {
		return types.Actor{}, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context required")
	}
	return actor, *actor.VendorID, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func parseUUIDField(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{field: "must be a uuid"})
	}
	return id, nil
}
