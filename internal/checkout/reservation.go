package checkout

import (
	"strings"
	"time"
)

const (
	reservationStatus   = "Prospect"
	reservationSource   = 37
	reservationSubtype  = "1"
	reservationDateForm = "2006-01-02"
)

// ReservationEntry is a per-lot reservation record as the ERP stores it.
type ReservationEntry struct {
	ItemNo            string  `json:"itemNo"`
	LocationCode      string  `json:"locationCode"`
	QuantityBase      float64 `json:"quantityBase"`
	ReservationStatus string  `json:"reservationStatus"`
	CreationDate      string  `json:"creationDate"`
	SourceType        int     `json:"sourceType"`
	SourceSubtype     string  `json:"sourceSubtype"`
	SourceID          string  `json:"sourceID"`
	SourceRefNo       string  `json:"sourceRefNo"`
	LotNo             string  `json:"lotNo"`
}

// ReservationEntries expands a lots payload into one reservation per selected
// lot. Lots without a number or quantity are skipped.
func ReservationEntries(p LotsPayload, now time.Time) []ReservationEntry {
	var out []ReservationEntry
	created := now.Format(reservationDateForm)
	for _, a := range p.Allocations {
		for _, l := range a.Lots {
			if strings.TrimSpace(l.LotNo) == "" || l.SelectedQty == 0 {
				continue
			}
			out = append(out, ReservationEntry{
				ItemNo:            a.ItemNo,
				LocationCode:      a.LocationCode,
				QuantityBase:      -l.SelectedQty,
				ReservationStatus: reservationStatus,
				CreationDate:      created,
				SourceType:        reservationSource,
				SourceSubtype:     reservationSubtype,
				SourceID:          p.SalesOrderNo,
				SourceRefNo:       a.LineNo,
				LotNo:             l.LotNo,
			})
		}
	}
	return out
}
