package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/internal/wallet"
	"github.com/angelmondragon/settlement-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
	"github.com/angelmondragon/settlement-engine/pkg/pagination"
)

type walletReader interface {
	Balance(ctx context.Context, vendorID uuid.UUID) (*wallet.BalanceView, error)
	ListHistory(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*pagination.Page[models.WalletTransaction], error)
}

// VendorWallet returns the caller's cached wallet balance.
func VendorWallet(svc walletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		_, vendorID, err := vendorActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Balance(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// VendorWalletTransactions pages through the caller's ledger, newest first.
func VendorWalletTransactions(svc walletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		_, vendorID, err := vendorActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListHistory(r.Context(), vendorID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]walletEntryResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, toWalletEntryResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, pagination.Page[walletEntryResponse]{Items: items, NextCursor: page.NextCursor})
	}
}
