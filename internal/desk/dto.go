package desk

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/order"
)

type createSessionRequest struct {
	Orders []ParsedOrder `json:"orders" validate:"required,min=1,max=50,dive"`
}

type companyRequest struct {
	Company string `json:"company" validate:"required,max=100"`
}

type searchRequest struct {
	Query    string `json:"query" validate:"required,max=200"`
	Category string `json:"category" validate:"omitempty,max=50"`
}

type numberRequest struct {
	Number string `json:"number" validate:"required,max=50"`
}

type quantityRequest struct {
	Value *Loose `json:"value"`
	Step  *int   `json:"step" validate:"omitempty,oneof=-1 1"`
}

type amountRequest struct {
	Value Loose `json:"value"`
}

type shippingRequest struct {
	MethodID  string `json:"method_id" validate:"required,max=50"`
	AgentCode string `json:"agent_code" validate:"required,max=50"`
}

type shipToRequest struct {
	Mode    string         `json:"mode" validate:"required,oneof=DEFAULT CUSTOM"`
	Name    string         `json:"name" validate:"max=100"`
	Address *order.Address `json:"address"`
}

type lotRequest struct {
	LotNo string          `json:"lot_no" validate:"required,max=100"`
	Qty   decimal.Decimal `json:"qty"`
}

type lotQtyRequest struct {
	Qty decimal.Decimal `json:"qty"`
}
