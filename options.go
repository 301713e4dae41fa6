package mqttv3

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// CarrierFactory builds the carrier a client connects through. The
// default factory produces a WSCarrier; tests substitute their own.
type CarrierFactory func(events CarrierEvents) Carrier

// clientOptions holds configuration for a Client.
type clientOptions struct {
	// Identity and credentials
	clientID string
	username string
	password []byte

	// Session settings
	cleanSession bool
	keepAlive    time.Duration
	will         Will

	// Transport
	tlsConfig         *tls.Config
	tlsErrorAllowList []TLSErrorCode
	proxyURL          string
	handshakeTimeout  time.Duration
	carrierFactory    CarrierFactory

	// Outbound publish pacing; nil means unlimited.
	publishLimiter *rate.Limiter

	// Observability
	logger  Logger
	metrics Metrics

	// Event surface
	onEvent       EventHandler
	onMessage     MessageHandler
	onStateChange func(state SessionState)
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *clientOptions {
	return &clientOptions{
		cleanSession:     true,
		keepAlive:        DefaultKeepAlive,
		handshakeTimeout: defaultHandshakeTimeout,
		logger:           NewNoOpLogger(),
		metrics:          NewNoOpMetrics(),
	}
}

// applyOptions builds the effective configuration.
func applyOptions(opts ...Option) *clientOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.clientID == "" {
		options.clientID = generateClientID()
	}

	if options.keepAlive < 0 {
		options.keepAlive = 0
	}
	if options.keepAlive > maxKeepAlive {
		options.keepAlive = maxKeepAlive
	}

	return options
}

// Option configures a Client.
type Option func(*clientOptions)

// WithClientID sets the client identifier. It must be non-empty and
// shorter than 24 characters; when unset, a generated identifier is
// used.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.clientID = id
	}
}

// WithCredentials sets the username and password forwarded in CONNECT.
// The username must be non-empty. A non-nil empty password is sent as
// a zero-length field; a nil password is omitted.
func WithCredentials(username string, password []byte) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = password
	}
}

// WithKeepAlive sets the keep-alive interval. Zero disables
// keep-alive. Values are capped at 65535 seconds, the largest interval
// the CONNECT encoding can carry.
func WithKeepAlive(interval time.Duration) Option {
	return func(o *clientOptions) {
		o.keepAlive = interval
	}
}

// WithCleanSession sets whether the server should discard previous
// session state. Defaults to true.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.cleanSession = clean
	}
}

// WithWill stages a last-will message announced in CONNECT.
func WithWill(will Will) Option {
	return func(o *clientOptions) {
		o.will = will
	}
}

// WithTLS sets the TLS configuration for wss:// endpoints.
func WithTLS(config *tls.Config) Option {
	return func(o *clientOptions) {
		o.tlsConfig = config
	}
}

// WithTLSErrorAllowList sets the certificate verification failure
// codes tolerated at connection time. Codes are compared without
// regard to the certificate that triggered them: any certificate
// failing with a listed code is accepted.
func WithTLSErrorAllowList(codes ...TLSErrorCode) Option {
	return func(o *clientOptions) {
		o.tlsErrorAllowList = codes
	}
}

// WithProxy routes the connection through a socks5:// proxy.
func WithProxy(proxyURL string) Option {
	return func(o *clientOptions) {
		o.proxyURL = proxyURL
	}
}

// WithHandshakeTimeout bounds the WebSocket opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.handshakeTimeout = d
	}
}

// WithCarrierFactory substitutes the carrier implementation.
func WithCarrierFactory(factory CarrierFactory) Option {
	return func(o *clientOptions) {
		o.carrierFactory = factory
	}
}

// WithPublishRateLimit paces outbound publishes with a token bucket.
// A publish that finds the bucket empty fails immediately rather than
// blocking.
func WithPublishRateLimit(limit rate.Limit, burst int) Option {
	return func(o *clientOptions) {
		o.publishLimiter = rate.NewLimiter(limit, burst)
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to a no-op sink.
func WithMetrics(metrics Metrics) Option {
	return func(o *clientOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithEventHandler sets the handler receiving lifecycle events and
// errors.
func WithEventHandler(handler EventHandler) Option {
	return func(o *clientOptions) {
		o.onEvent = handler
	}
}

// WithMessageHandler sets the handler receiving application messages.
func WithMessageHandler(handler MessageHandler) Option {
	return func(o *clientOptions) {
		o.onMessage = handler
	}
}

// WithStateChangeHandler sets the handler observing session state
// transitions.
func WithStateChangeHandler(handler func(state SessionState)) Option {
	return func(o *clientOptions) {
		o.onStateChange = handler
	}
}

// generateClientID returns a random client identifier short enough for
// the CONNECT client-id constraint.
func generateClientID() string {
	id := uuid.New()
	return fmt.Sprintf("mqttv3-%x", id[:8])
}
