package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/josh-kwaku/wallet-ledger/internal/auth"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

type aliasRegistrar interface {
	Register(ctx context.Context, identifier, accountID string) error
}

// AliasHandler lets a wallet holder publish the identifier partners use to
// charge them through the pay integration.
type AliasHandler struct {
	directory aliasRegistrar
}

func NewAliasHandler(d aliasRegistrar) *AliasHandler {
	return &AliasHandler{directory: d}
}

type registerAliasRequest struct {
	Identifier string `json:"identifier"`
}

func (r registerAliasRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Identifier) == "" {
		errs = append(errs, FieldError{Field: "identifier", Message: "required"})
	} else if len(r.Identifier) > 128 {
		errs = append(errs, FieldError{Field: "identifier", Message: "must be at most 128 characters"})
	}
	return errs
}

func (h *AliasHandler) Register(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req registerAliasRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	if err := h.directory.Register(r.Context(), req.Identifier, accountID); err != nil {
		RespondDomainError(r.Context(), w, err, nil)
		return
	}

	logging.FromContext(r.Context()).Info("alias registered", "identifier", req.Identifier)
	RespondSuccess(w, http.StatusOK, map[string]string{
		"identifier": strings.ToLower(strings.TrimSpace(req.Identifier)),
		"account_id": accountID,
	})
}
