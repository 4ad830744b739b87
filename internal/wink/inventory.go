package wink

import (
	"strconv"
	"strings"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

// ParseInventory extracts per-location counts from a Wink product payload.
// The API is loose about shape: inventory can be a list of {store, qty}
// objects or a map of store id to quantity; some products only carry a
// locations/stores array or a bare total. Store ids are mapped to display
// names where known.
func ParseInventory(product map[string]any, storeNames map[string]string) domain.LocationInventory {
	inventory := domain.LocationInventory{}
	if product == nil {
		return inventory
	}

	switch inv := product["inventory"].(type) {
	case []any:
		for _, item := range inv {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			storeID := asString(entry["store"])
			if storeID == "" {
				continue
			}
			name := storeID
			if mapped, ok := storeNames[storeID]; ok {
				name = mapped
			}
			inventory[name] = asInt(entry["qty"])
		}
	case map[string]any:
		for storeID, qty := range inv {
			n := asInt(qty)
			if n < 0 {
				continue
			}
			name := storeID
			if mapped, ok := storeNames[storeID]; ok {
				name = mapped
			}
			inventory[name] = n
		}
	}

	// Some payloads carry a locations/stores array instead.
	locations, ok := product["locations"].([]any)
	if !ok {
		locations, _ = product["stores"].([]any)
	}
	for _, item := range locations {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := firstString(entry, "name", "storeName", "location", "store_name")
		if name == "" {
			continue
		}
		inventory[name] = firstInt(entry, "quantity", "qty", "stock", "available", "onHand")
	}

	// Last resort: a total-only product gets a single synthetic location.
	if len(inventory) == 0 {
		if total := firstInt(product, "totalInventory", "total_inventory", "stock", "quantity"); total > 0 {
			inventory["Total"] = total
		}
	}

	return inventory
}

// Classify computes the stock status for a parsed inventory. found is false
// when the product lookup missed entirely.
func Classify(inventory domain.LocationInventory, found bool) domain.StockStatus {
	return domain.ClassifyStock(inventory.Total(), found)
}

// NormalizeUPC prepares a UPC for a Wink query. Safilo UPCs are stored with
// leading zeros the API does not accept.
func NormalizeUPC(upc string, safilo bool) string {
	upc = strings.TrimSpace(upc)
	if !safilo || upc == "" {
		return upc
	}
	normalized := strings.TrimLeft(upc, "0")
	if normalized == "" {
		return "0"
	}
	return normalized
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		// JSON numbers arrive as float64; store ids are small integers.
		return strconv.Itoa(int(s))
	}
	return ""
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(m[key]); s != "" {
			return s
		}
	}
	return ""
}

func firstInt(m map[string]any, keys ...string) int {
	for _, key := range keys {
		if _, ok := m[key]; ok {
			if n := asInt(m[key]); n != 0 {
				return n
			}
		}
	}
	return 0
}
