package config

type Callbacks struct{}

var _ CallbackConfig = Callbacks{}

// GetCallbackBaseURL returns the base URL of the TPP service receiving
// outbound session and token callbacks.
func (Callbacks) GetCallbackBaseURL() string {
	return GetEnv("CALLBACK_BASE_URL", "http://localhost:9090")
}

// GetProviderCode identifies this connector towards the TPP service; it is
// sent as the issuer of signed callback requests.
func (Callbacks) GetProviderCode() string {
	return GetEnv("PROVIDER_CODE", "demobank")
}

// GetPrivateKeyPath points at the PEM-encoded RSA key used to sign callback
// requests. An empty value makes the connector generate an ephemeral key,
// which the TPP service will not be able to verify against a registered one.
func (Callbacks) GetPrivateKeyPath() string {
	return GetEnv("PRIVATE_KEY_PATH", "")
}
