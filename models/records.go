package models

// ResultItem is one extracted revenue figure. Items are appended in
// owner-list then property-list order and never modified afterwards.
type ResultItem struct {
	Owner        string      `json:"owner"`
	Nickname     string      `json:"nickname"`
	Month        TargetMonth `json:"month"`
	OwnerRevenue float64     `json:"ownerRevenue"`
}

// Payload is the JSON body delivered to the webhook.
type Payload struct {
	Items []ResultItem `json:"items"`
}

// OwnerRecord is an owner row discovered on the owners listing.
type OwnerRecord struct {
	Index int
	Name  string
}

// PropertyRecord is a property row inside one owner's detail context.
type PropertyRecord struct {
	Index    int
	Nickname string
}

// RunSummary holds operator-facing statistics over a run's result set.
type RunSummary struct {
	Month           TargetMonth
	TotalItems      int
	Owners          int
	ZeroRevenue     int
	TotalRevenue    float64
	RevenueByOwner  map[string]float64
	PropertyByOwner map[string]int
	Sample          []ResultItem
}
