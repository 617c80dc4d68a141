package desk

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/order-desk/internal/checkout"
	"github.com/noah-isme/order-desk/internal/common"
	"github.com/noah-isme/order-desk/internal/erp"
	"github.com/noah-isme/order-desk/internal/lots"
	"github.com/noah-isme/order-desk/internal/order"
)

// toAppError maps workspace errors onto the canonical HTTP error envelope.
func toAppError(err error) *common.AppError {
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}
	var ve *checkout.ValidationError
	if errors.As(err, &ve) {
		return common.Validation(ve.Message, map[string]string{"field": ve.Field})
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		return common.Validation("invalid request body", details)
	}
	var ee *erp.Error
	if errors.As(err, &ee) {
		return common.Upstream(erp.UserMessage(err), err)
	}
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, order.ErrLineNotFound),
		errors.Is(err, lots.ErrAllocationNotFound),
		errors.Is(err, lots.ErrLotNotFound):
		return common.NotFound(err.Error())
	case errors.Is(err, ErrNotCandidate), errors.Is(err, ErrNoCompany):
		return common.Validation(err.Error(), nil)
	case errors.Is(err, order.ErrLastItem),
		errors.Is(err, ErrReadOnly),
		errors.Is(err, ErrAlreadyInserted),
		errors.Is(err, ErrSubmitInProgress),
		errors.Is(err, ErrCompanyLocked),
		errors.Is(err, ErrCourierLine):
		return common.Conflict(err.Error(), err)
	case errors.Is(err, lots.ErrDuplicateLot),
		errors.Is(err, lots.ErrInvalidQuantity),
		errors.Is(err, lots.ErrExceedsRequested),
		errors.Is(err, lots.ErrExceedsAvailable),
		errors.Is(err, lots.ErrLocked):
		return common.Conflict(err.Error(), err)
	}
	return common.NewAppError(common.CodeInternal, "internal error", http.StatusInternalServerError, err)
}
