package callbacks

// Sink delivers outbound callbacks to the TPP service. Delivery is
// fire-and-forget: implementations own their timeouts and error reporting,
// and the core never rolls back a committed token transition because a
// notification could not be delivered.
type Sink interface {
	SendSuccess(sessionSecret string, payload SessionSuccess)
	SendFail(sessionSecret string, kind ErrorKind)
	SendUpdate(sessionSecret string, payload SessionUpdate)
	SendRevoke(accessToken string)
}
