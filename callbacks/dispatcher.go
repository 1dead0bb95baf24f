package callbacks

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mnewlive/compliance-connector/tokens"
)

// Payment product codes with a non-default final status.
const (
	PaymentProductFasterPaymentService       = "faster-payment-service"
	PaymentProductInstantSepaCreditTransfers = "instant-sepa-credit-transfers"
)

// finalPaymentStatuses is a fixed lookup table, not inferred from the product.
var finalPaymentStatuses = map[string]string{
	PaymentProductFasterPaymentService:       "ACSC",
	PaymentProductInstantSepaCreditTransfers: "ACCC",
}

// defaultPaymentStatus means "accepted, settlement pending".
const defaultPaymentStatus = "ACTC"

// FinalPaymentStatus maps a payment product code to the status reported on a
// successful payment authorization. Unknown and empty product codes map to
// the default.
func FinalPaymentStatus(paymentProduct string) string {
	if status, ok := finalPaymentStatuses[paymentProduct]; ok {
		return status
	}
	return defaultPaymentStatus
}

// Dispatcher shapes outbound callback payloads and hands them to the sink.
// Every method guards on the session secret in one place: a blank secret
// means there is no session to notify, which is a legitimate terminal case
// for flows that never established one, so the dispatch is skipped rather
// than attempted or treated as an error.
type Dispatcher struct {
	sink Sink
}

// NewDispatcher initializes a Dispatcher delivering through sink.
func NewDispatcher(sink Sink) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("[NewDispatcher] callback sink is required")
	}
	return &Dispatcher{sink: sink}, nil
}

// AccountInfoSuccess reports a confirmed account information authorization.
func (d *Dispatcher) AccountInfoSuccess(sessionSecret, userID string, consent *tokens.Consent) {
	if d.skip(sessionSecret, "account info success") {
		return
	}
	d.sink.SendSuccess(sessionSecret, SessionSuccess{UserID: userID, Consent: consent})
}

// AccountInfoFail reports a failed account information authorization.
// Always reported as access denied.
func (d *Dispatcher) AccountInfoFail(sessionSecret string) {
	if d.skip(sessionSecret, "account info fail") {
		return
	}
	d.sink.SendFail(sessionSecret, ErrorKindAccessDenied)
}

// PaymentSuccess reports a successful payment authorization with the final
// status derived from the payment product code.
func (d *Dispatcher) PaymentSuccess(sessionSecret, userID, paymentProduct string) {
	if d.skip(sessionSecret, "payment success") {
		return
	}
	d.sink.SendSuccess(sessionSecret, SessionSuccess{
		UserID: userID,
		Status: FinalPaymentStatus(paymentProduct),
	})
}

// PaymentFail reports a failed or denied payment authorization.
// Always reported as payment not created.
func (d *Dispatcher) PaymentFail(sessionSecret string) {
	if d.skip(sessionSecret, "payment fail") {
		return
	}
	d.sink.SendFail(sessionSecret, ErrorKindPaymentNotCreated)
}

// FundsUpdate forwards funds confirmation data for an in-flight payment.
func (d *Dispatcher) FundsUpdate(sessionSecret string, fundsAvailable bool, status string) {
	if d.skip(sessionSecret, "funds update") {
		return
	}
	d.sink.SendUpdate(sessionSecret, SessionUpdate{FundsAvailable: fundsAvailable, Status: status})
}

// TokenRevoked reports a revoked access token to the TPP service. Callers
// invoke this only on the call that performed the transition, keeping the
// notification at-most-once per revocation.
func (d *Dispatcher) TokenRevoked(accessToken string) {
	if accessToken == "" {
		log.Debug().Msg("skipping revoke callback, blank access token")
		return
	}
	d.sink.SendRevoke(accessToken)
}

func (d *Dispatcher) skip(sessionSecret, event string) bool {
	if sessionSecret != "" {
		return false
	}
	log.Debug().Str("event", event).Msg("skipping callback, no session to notify")
	return true
}
