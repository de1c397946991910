package meetdex

import "net/http"

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	apiKey     string
	httpClient *http.Client
	userAgent  string
}

// WithAPIKey sets the bearer token sent with every request. Required when
// the server is configured with API keys.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = key
	})
}

// WithHTTPClient replaces the underlying HTTP client. Use to control
// timeouts, proxies or transport-level instrumentation.
func WithHTTPClient(h *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = h
	})
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return optionFunc(func(c *clientConfig) {
		c.userAgent = ua
	})
}
