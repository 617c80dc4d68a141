package erp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/order-desk/internal/lots"
	"github.com/noah-isme/order-desk/internal/order"
	"github.com/noah-isme/order-desk/internal/pricing"
	"github.com/noah-isme/order-desk/internal/shipping"
)

// Collaborators are not consistent about field casing, so every read goes
// through a list of accepted aliases.
var (
	aliasNumber      = []string{"number", "No", "no", "itemNo", "Item_No", "customerNumber"}
	aliasDisplayName = []string{"displayName", "display_name", "Name", "name", "Description"}
	aliasCategory    = []string{"itemCategoryCode", "item_category_code", "Item_Category_Code", "category"}
	aliasUnitPrice   = []string{"unitPrice", "unit_price", "Unit_Price", "price"}
	aliasUOM         = []string{"baseUnitOfMeasureCode", "base_unit_of_measure_code", "Base_Unit_of_Measure", "unitOfMeasureCode"}
	aliasPriceUOM    = []string{"unitOfMeasureCode", "unit_of_measure_code", "Unit_of_Measure_Code", "uom"}
	aliasLine1       = []string{"addressLine1", "address_line1", "Address", "address"}
	aliasLine2       = []string{"addressLine2", "address_line2", "Address_2"}
	aliasCity        = []string{"city", "City"}
	aliasState       = []string{"state", "County", "county"}
	aliasPostal      = []string{"postalCode", "postal_code", "Post_Code", "postCode"}
	aliasCountry     = []string{"country", "Country_Region_Code", "countryRegionCode"}
	aliasEmail       = []string{"email", "E_Mail", "eMail"}
	aliasPhone       = []string{"phoneNumber", "phone_number", "Phone_No", "phone"}
	aliasResults     = []string{"results", "customer_search_results", "item_search_results", "value", "items", "customers"}
	aliasStatus      = []string{"status", "Status"}
	aliasMessage     = []string{"message", "error", "Message"}
	aliasDetail      = []string{"detail", "details", "Detail"}
	aliasSOID        = []string{"sales_order_id", "salesOrderId", "id"}
	aliasSONo        = []string{"sales_order_no", "salesOrderNo", "number"}
)

type object map[string]any

func decodeObject(data []byte) (object, error) {
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if obj == nil {
		obj = object{}
	}
	return obj, nil
}

func (o object) raw(keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := o[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (o object) str(keys ...string) string {
	v, ok := o.raw(keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (o object) num(keys ...string) decimal.Decimal {
	v, ok := o.raw(keys)
	if !ok {
		return decimal.Zero
	}
	return toDecimal(v)
}

func (o object) list(keys ...string) []object {
	v, ok := o.raw(keys)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]object, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, object(m))
		}
	}
	return out
}

func toDecimal(v any) decimal.Decimal {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}

func (o object) address() order.Address {
	if nested, ok := o["address"].(map[string]any); ok {
		return object(nested).address()
	}
	return order.Address{
		Line1:      o.str(aliasLine1...),
		Line2:      o.str(aliasLine2...),
		City:       o.str(aliasCity...),
		State:      o.str(aliasState...),
		PostalCode: o.str(aliasPostal...),
		Country:    o.str(aliasCountry...),
	}
}

// ParseCandidates reads a lookup response into candidates. Entries without a
// number are dropped.
func ParseCandidates(data []byte) ([]order.Candidate, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	if msg := obj.str("error"); msg != "" && len(obj.list(aliasResults...)) == 0 {
		return nil, &Error{Op: "lookup", Status: "error", Message: msg}
	}
	out := []order.Candidate{}
	for _, rec := range obj.list(aliasResults...) {
		c := candidateFrom(rec)
		if c.Number == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func candidateFrom(rec object) order.Candidate {
	return order.Candidate{
		Number:       rec.str(aliasNumber...),
		DisplayName:  rec.str(aliasDisplayName...),
		CategoryCode: rec.str(aliasCategory...),
		UnitPrice:    rec.num(aliasUnitPrice...),
		BaseUOM:      rec.str(aliasUOM...),
		Address:      rec.address(),
		Email:        rec.str(aliasEmail...),
		Phone:        rec.str(aliasPhone...),
	}
}

// ParseCompanies reads the company list. Both plain strings and objects with
// a name field are accepted.
func ParseCompanies(data []byte) ([]string, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	v, _ := obj.raw([]string{"company_names", "companies", "value"})
	arr, _ := v.([]any)
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		switch t := item.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			if s := object(t).str("name", "Name", "displayName"); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		if msg := obj.str("error"); msg != "" {
			return nil, &Error{Op: "companies", Status: "error", Message: msg}
		}
	}
	return out, nil
}

// ParseCourier reads the courier item. An empty number means no courier item.
func ParseCourier(data []byte) (*order.ItemRef, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	if vals := obj.list("value"); len(vals) > 0 {
		obj = vals[0]
	}
	number := obj.str(aliasNumber...)
	if number == "" {
		return nil, nil
	}
	return &order.ItemRef{
		Number:       number,
		DisplayName:  obj.str(aliasDisplayName...),
		CategoryCode: obj.str(aliasCategory...),
		BaseUOM:      obj.str(aliasUOM...),
		UnitPrice:    obj.num(aliasUnitPrice...),
	}, nil
}

// ParsePrice reads a pricing response and tags it with itemNo.
func ParsePrice(data []byte, itemNo string) (pricing.LinePrice, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return pricing.LinePrice{}, err
	}
	if status := obj.str(aliasStatus...); status != "" && !IsSuccess(status) {
		return pricing.LinePrice{}, &Error{Op: "price", Status: status, Message: obj.str(aliasMessage...)}
	}
	return pricing.LinePrice{
		ItemNo:            strings.TrimSpace(itemNo),
		UnitPrice:         obj.num(aliasUnitPrice...),
		UnitOfMeasureCode: obj.str(aliasPriceUOM...),
	}, nil
}

// ParseShipping reads shipping metadata for a company.
func ParseShipping(data []byte, company string) (shipping.Metadata, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return shipping.Metadata{}, err
	}
	if status := obj.str(aliasStatus...); status != "" && !IsSuccess(status) {
		return shipping.Metadata{}, &Error{Op: "shipping", Status: status, Message: obj.str(aliasMessage...)}
	}
	meta := shipping.Metadata{Company: company, Methods: []shipping.Method{}, Agents: []shipping.Agent{}}
	for _, m := range obj.list("shipment_methods", "shipmentMethods", "methods") {
		meta.Methods = append(meta.Methods, shipping.Method{
			ID:          m.str("id", "Id", "systemId"),
			Code:        m.str("code", "Code"),
			DisplayName: m.str(aliasDisplayName...),
		})
	}
	for _, a := range obj.list("shipment_agents", "shipmentAgents", "agents") {
		meta.Agents = append(meta.Agents, shipping.Agent{
			Code: a.str("Code", "code"),
			Name: a.str("Name", "name", "displayName"),
		})
	}
	return meta, nil
}

// ParseSubmit reads a submission response. Non-success statuses become *Error.
func ParseSubmit(data []byte, op string) (SubmitResult, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return SubmitResult{}, err
	}
	status := obj.str(aliasStatus...)
	if !IsSuccess(status) {
		return SubmitResult{}, &Error{
			Op:      op,
			Status:  status,
			Message: obj.str(aliasMessage...),
			Detail:  obj.str(aliasDetail...),
		}
	}
	return SubmitResult{
		Status:       status,
		SalesOrderID: obj.str(aliasSOID...),
		SalesOrderNo: obj.str(aliasSONo...),
		Message:      obj.str(aliasMessage...),
	}, nil
}

// ParseAllocation reads proposed allocations and the optional lot catalog.
func ParseAllocation(data []byte) (AllocationResult, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return AllocationResult{}, err
	}
	status := obj.str(aliasStatus...)
	if !IsSuccess(status) {
		return AllocationResult{}, &Error{
			Op:      "allocate",
			Status:  status,
			Message: obj.str(aliasMessage...),
			Detail:  obj.str(aliasDetail...),
		}
	}
	res := AllocationResult{Allocations: []lots.Allocation{}}
	for _, rec := range obj.list("selected_lots", "selectedLots") {
		a := lots.Allocation{
			ItemNo:         rec.str("Item_No", "itemNo"),
			LineNo:         rec.str("Line_No", "lineNo"),
			LocationCode:   rec.str("Location_Code", "locationCode"),
			RequestedQty:   rec.num("Requested_Qty", "requestedQty", "Quantity"),
			UnfulfilledQty: rec.num("Unfulfilled_Qty", "unfulfilledQty"),
			Lots:           []lots.SelectedLot{},
		}
		for _, l := range rec.list("Selected_Lots", "selectedLots", "lots") {
			lotNo := l.str("Lot_No", "lotNo")
			if lotNo == "" {
				continue
			}
			po := l.str("PO", "PO_No", "po")
			if po == "" {
				po = lots.ExtractPO(lotNo)
			}
			a.Lots = append(a.Lots, lots.SelectedLot{
				LotNo:        lotNo,
				PO:           po,
				PostingDate:  l.str("Posting_Date", "postingDate"),
				SelectedQty:  l.num("Selected_Qty", "selectedQty"),
				AvailableQty: l.num("Available_Qty", "Available_Quantity", "availableQty"),
			})
		}
		res.Allocations = append(res.Allocations, a)
	}
	for _, rec := range obj.list("lot_list", "lotList") {
		list := lots.LotList{
			ItemNo:       rec.str("Item_No", "itemNo"),
			LineNo:       rec.str("Line_No", "Line_No ", "lineNo"),
			LocationCode: rec.str("Location_Code", "locationCode"),
			Quantity:     rec.num("Quantity", "quantity"),
		}
		for _, l := range rec.list("Lot_Records", "lotRecords") {
			lotNo := l.str("Lot_No", "lotNo")
			if lotNo == "" {
				continue
			}
			po := l.str("PO_No", "PO", "po")
			if po == "" {
				po = lots.ExtractPO(lotNo)
			}
			list.Records = append(list.Records, lots.AvailableLot{
				LotNo:        lotNo,
				PO:           po,
				PostingDate:  l.str("Posting_Date", "postingDate"),
				AvailableQty: l.num("Available_Qty", "Available_Quantity", "availableQty"),
			})
		}
		res.Catalog = append(res.Catalog, list)
	}
	return res, nil
}
