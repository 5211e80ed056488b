package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 10 << 20

// SetMaxBodyBytes configures the maximum request body size; n <= 0 restores the default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 10 << 20
		return
	}
	maxBodyBytes = n
}

// maxBatchSize bounds the number of rows in a prediction payload. Zero disables the check.
var maxBatchSize int

// SetMaxBatchSize sets the row limit for predictions (0 disables).
func SetMaxBatchSize(n int) {
	if n < 0 {
		n = 0
	}
	maxBatchSize = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// authenticator guards /serving/*; nil leaves it open.
var authenticator Authenticator

// SetAuthenticator installs the gate in front of the serving routes.
func SetAuthenticator(a Authenticator) { authenticator = a }
