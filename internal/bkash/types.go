package bkash

import "errors"

const (
	// StatusSuccess is the statusCode bKash returns for a successful call.
	StatusSuccess = "0000"

	// TransactionCompleted is the transactionStatus of a settled payment.
	TransactionCompleted = "Completed"
	// Payments in these states can no longer be executed.
	TransactionCancelled = "Cancelled"
	TransactionFailed    = "Failed"
	TransactionExpired   = "Expired"
	TransactionDeclined  = "Declined"

	checkoutMode = "0011"
	currencyBDT  = "BDT"
	intentSale   = "sale"
)

var (
	// ErrGateway wraps every failure talking to bKash: transport errors,
	// non-200 responses and responses without a success statusCode.
	ErrGateway = errors.New("bkash gateway failure")
	// ErrNoToken means the grant call did not yield a token.
	ErrNoToken = errors.New("bkash token unavailable")
)

type grantRequest struct {
	AppKey    string `json:"app_key"`
	AppSecret string `json:"app_secret"`
}

type grantResponse struct {
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	StatusCode   string `json:"statusCode"`
	StatusMsg    string `json:"statusMessage"`
}

type createRequest struct {
	Mode                  string `json:"mode"`
	PayerReference        string `json:"payerReference"`
	CallbackURL           string `json:"callbackURL"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	Intent                string `json:"intent"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
}

type paymentIDRequest struct {
	PaymentID string `json:"paymentID"`
}

// CreatePaymentResponse is the create call payload.
type CreatePaymentResponse struct {
	StatusCode            string `json:"statusCode"`
	StatusMessage         string `json:"statusMessage"`
	PaymentID             string `json:"paymentID"`
	BkashURL              string `json:"bkashURL"`
	CallbackURL           string `json:"callbackURL"`
	SuccessCallbackURL    string `json:"successCallbackURL"`
	FailureCallbackURL    string `json:"failureCallbackURL"`
	CancelledCallbackURL  string `json:"cancelledCallbackURL"`
	Amount                string `json:"amount"`
	Intent                string `json:"intent"`
	Currency              string `json:"currency"`
	PaymentCreateTime     string `json:"paymentCreateTime"`
	TransactionStatus     string `json:"transactionStatus"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
}

// ExecutePaymentResponse is the execute call payload.
type ExecutePaymentResponse struct {
	StatusCode            string `json:"statusCode"`
	StatusMessage         string `json:"statusMessage"`
	PaymentID             string `json:"paymentID"`
	CustomerMsisdn        string `json:"customerMsisdn"`
	PayerReference        string `json:"payerReference"`
	PaymentExecuteTime    string `json:"paymentExecuteTime"`
	TrxID                 string `json:"trxID"`
	TransactionStatus     string `json:"transactionStatus"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	Intent                string `json:"intent"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
}

// QueryPaymentResponse is the payment status payload.
type QueryPaymentResponse struct {
	StatusCode             string `json:"statusCode"`
	StatusMessage          string `json:"statusMessage"`
	PaymentID              string `json:"paymentID"`
	Mode                   string `json:"mode"`
	PaymentCreateTime      string `json:"paymentCreateTime"`
	PaymentExecuteTime     string `json:"paymentExecuteTime"`
	TrxID                  string `json:"trxID"`
	TransactionStatus      string `json:"transactionStatus"`
	Amount                 string `json:"amount"`
	Currency               string `json:"currency"`
	Intent                 string `json:"intent"`
	MerchantInvoiceNumber  string `json:"merchantInvoiceNumber"`
	UserVerificationStatus string `json:"userVerificationStatus"`
}

// Completed reports whether the gateway considers the payment settled.
func (q *QueryPaymentResponse) Completed() bool {
	return q.StatusCode == StatusSuccess && q.TransactionStatus == TransactionCompleted
}

// Closed reports whether bKash says the payment ended without settling.
func (q *QueryPaymentResponse) Closed() bool {
	if q.StatusCode != StatusSuccess {
		return false
	}
	switch q.TransactionStatus {
	case TransactionCancelled, TransactionFailed, TransactionExpired, TransactionDeclined:
		return true
	}
	return false
}

// errorResponse is what bKash sends for rejected calls on some endpoints.
type errorResponse struct {
	ErrorCode     string `json:"errorCode"`
	ErrorMessage  string `json:"errorMessage"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

func (e errorResponse) describe() string {
	switch {
	case e.ErrorCode != "":
		return e.ErrorCode + " " + e.ErrorMessage
	case e.StatusCode != "":
		return e.StatusCode + " " + e.StatusMessage
	default:
		return ""
	}
}
