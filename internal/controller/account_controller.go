package controller

import (
	"net/http"

	"github.com/cassiomorais/ledger/internal/service"
	"github.com/go-chi/chi/v5"
)

type AccountController struct {
	accountService *service.AccountService
}

func NewAccountController(accountService *service.AccountService) *AccountController {
	return &AccountController{accountService: accountService}
}

func (h *AccountController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	acct, err := h.accountService.CreateAccount(r.Context(), req.toService())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromAccount(acct))
}

func (h *AccountController) Get(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accountService.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromAccount(acct))
}

func (h *AccountController) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FromSummary(h.accountService.Summary(r.Context())))
}
