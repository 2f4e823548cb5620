package constants

// Channel attribute keys. Attributes are the typed per-channel side table the
// transport exposes; handlers at different pipeline depths share state through
// these symbols rather than direct references.
const (
	AttrGatewayRequest   = "gantry.request"
	AttrGatewayResponse  = "gantry.response"
	AttrSourceAddress    = "gantry.source_address"
	AttrLocalPort        = "gantry.local_port"
	AttrLocalAddress     = "gantry.local_address"
	AttrSSLInfo          = "gantry.ssl_info"
	AttrProtocolName     = "gantry.protocol_name"
	AttrPassport         = "gantry.passport"
	AttrPooledConnection = "gantry.pooled_connection"
	AttrProxySession     = "gantry.proxy_session"
)

// SessionContext keys.
const (
	CtxKeyClientChannel = "client_channel"
	CtxKeySSLInfo       = "ssl_handshake_info"
	CtxKeyNativeRequest = "native_http_request"
	CtxKeyPassport      = "passport"
	CtxKeyEndpoint      = "endpoint"
)

// Pipeline handler names. Fixed so handlers can be located, removed and
// reinstalled by name (the pool removes the idle handler on acquire and
// installs a fresh one on release).
const (
	HandlerSourceAddress   = "source-address"
	HandlerHTTPCodec       = "http-codec"
	HandlerPassportState   = "passport-state"
	HandlerIdleState       = "idle-state"
	HandlerOriginLogger    = "origin-logger"
	HandlerHTTPMetrics     = "http-metrics"
	HandlerHTTPLifecycle   = "http-lifecycle"
	HandlerConnectionPool  = "connection-pool"
	HandlerResponseRelay   = "origin-response-relay"
	HandlerRequestReceiver = "client-request-receiver"
	HandlerResponseWriter  = "client-response-writer"
	HandlerFilterAdapter   = "filter-adapter"
)
