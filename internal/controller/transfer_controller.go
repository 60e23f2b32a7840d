package controller

import (
	"net/http"

	"github.com/cassiomorais/ledger/internal/service"
)

type TransferController struct {
	transferService *service.TransferService
}

func NewTransferController(transferService *service.TransferService) *TransferController {
	return &TransferController{transferService: transferService}
}

func (h *TransferController) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.transferService.Transfer(r.Context(), req.toService())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromTransferResult(result))
}
