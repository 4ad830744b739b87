package domain

// StockStatus classifies a product's availability across store locations.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLowStock   StockStatus = "low_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockNotFound   StockStatus = "not_found"
)

const lowStockThreshold = 2

// ClassifyStock maps a summed location count to a stock status. A lookup
// miss is not_found regardless of the count.
func ClassifyStock(total int, found bool) StockStatus {
	if !found {
		return StockNotFound
	}
	switch {
	case total <= 0:
		return StockOutOfStock
	case total <= lowStockThreshold:
		return StockLowStock
	default:
		return StockInStock
	}
}

// LocationInventory maps a store location name to its unit count.
type LocationInventory map[string]int

// Total sums the counts across all locations.
func (li LocationInventory) Total() int {
	total := 0
	for _, qty := range li {
		total += qty
	}
	return total
}

// SyncStats tallies per-record outcomes of one inventory sync pass. A single
// record's failure is recorded here and never aborts the pass.
type SyncStats struct {
	TotalRecords int `json:"total_records"`
	Processed    int `json:"processed"`
	Updated      int `json:"updated"`
	NotFound     int `json:"not_found"`
	Errors       int `json:"errors"`
	InStock      int `json:"in_stock"`
	LowStock     int `json:"low_stock"`
	OutOfStock   int `json:"out_of_stock"`
}

// CountStatus records one classified outcome in the tally.
func (s *SyncStats) CountStatus(status StockStatus) {
	switch status {
	case StockInStock:
		s.InStock++
	case StockLowStock:
		s.LowStock++
	case StockOutOfStock:
		s.OutOfStock++
	case StockNotFound:
		s.NotFound++
	}
}
