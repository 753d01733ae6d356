package domain

// Request bodies for the transport boundary. Validation tags are enforced in
// the HTTP layer before anything reaches the engine.

type CartLine struct {
	ProductRef string  `json:"productRef" validate:"required"`
	Title      string  `json:"title"`
	Price      float64 `json:"price" validate:"gte=0"`
	Qty        int     `json:"qty" validate:"gte=1"`
}

type SubmitCartRequest struct {
	TableNo   int        `json:"tableNo" validate:"omitempty,gte=1"`
	OrderType OrderType  `json:"orderType" validate:"required,oneof=dine-in takeaway"`
	Items     []CartLine `json:"items" validate:"required,min=1,dive"`
	Total     float64    `json:"total" validate:"gt=0"`
}

type AdvanceRequest struct {
	Status OrderStatus `json:"status" validate:"required"`
}

type PriorityRequest struct {
	IsPriority bool `json:"isPriority"`
}

type RaiseCallRequest struct {
	TableNo int        `json:"tableNo" validate:"required,gte=1"`
	Source  CallSource `json:"source" validate:"required,oneof=menu kitchen"`
}

type ClaimCallRequest struct {
	TableNo int        `json:"tableNo" validate:"required,gte=1"`
	Source  CallSource `json:"source" validate:"required,oneof=menu kitchen"`
}

type CallStaffRequest struct {
	Message string `json:"message"`
}

type SubmitCartResponse struct {
	Order   *Order `json:"order"`
	Created bool   `json:"created"`
}
