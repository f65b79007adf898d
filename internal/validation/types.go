package validation

// CheckoutRequest is the payload for POST /api/checkout/:product_id
type CheckoutRequest struct {
	CustomerName string `json:"customer_name" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Phone        string `json:"phone" validate:"required,phone"` // bKash wallet number
}

// CreatePaymentRequest is the payload for POST /api/payments/create
type CreatePaymentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

// ReviewRequest is the payload for POST /api/products/:id/reviews
type ReviewRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Title   string `json:"title" validate:"required,max=200"`
	Comment string `json:"comment" validate:"required"`
}

// ReviewEditRequest is the payload for PUT /api/reviews/:id
type ReviewEditRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Title   string `json:"title" validate:"required,max=200"`
	Comment string `json:"comment" validate:"required"`
}

// ModerationRequest is the payload for the bulk moderation endpoints.
type ModerationRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}
