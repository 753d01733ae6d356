package domain

import "time"

type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusMaking  OrderStatus = "making"
	StatusReady   OrderStatus = "ready"
	StatusServed  OrderStatus = "served"
)

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusMaking, StatusReady, StatusServed:
		return true
	}
	return false
}

type OrderType string

const (
	TypeDineIn   OrderType = "dine-in"
	TypeTakeaway OrderType = "takeaway"
)

// TakeawaySlotBase is the first synthetic table number handed to takeaway
// orders. Real tables live far below it, so the two ranges never collide.
const TakeawaySlotBase = 10000

type OrderLine struct {
	ProductRef string  `json:"productRef"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Qty        int     `json:"qty"`
}

// AddonBatch is one later-appended group of lines merged into an open order.
// Batches are append-only once written.
type AddonBatch struct {
	Items   []OrderLine `json:"items"`
	AddedAt time.Time   `json:"addedAt"`
}

type ChefRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Order struct {
	ID           string       `json:"id"`
	TableNo      int          `json:"tableNo"`
	Type         OrderType    `json:"orderType"`
	Items        []OrderLine  `json:"items"`
	AddOns       []AddonBatch `json:"addOns,omitempty"`
	Status       OrderStatus  `json:"status"`
	IsPriority   bool         `json:"isPriority"`
	AssignedChef *ChefRef     `json:"assignedChef,omitempty"`
	Paid         bool         `json:"paid"`
	Total        float64      `json:"total"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Live reports whether the order still owns its table for addon merging.
// Served counts as closed even while unpaid; the customer terminal drops its
// cached order id at served, so a new submission starts a fresh order.
func (o *Order) Live() bool { return o.Status != StatusServed }

// ComputeTotal sums qty x price over the initial items and every addon batch.
// The stored total must always equal this; it is recomputed server-side on
// each mutation and never trusted from the client past creation.
func (o *Order) ComputeTotal() float64 {
	var t float64
	for _, l := range o.Items {
		t += float64(l.Qty) * l.Price
	}
	for _, b := range o.AddOns {
		for _, l := range b.Items {
			t += float64(l.Qty) * l.Price
		}
	}
	return t
}
