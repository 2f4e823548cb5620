package constants

import "time"

const (
	DefaultIdleTimeout           = 30 * time.Second
	DefaultConnectTimeout        = 5 * time.Second
	DefaultMaxConnectionsPerHost = -1
	DefaultPerServerWaterline    = -1

	DefaultConfigFile = "config.yaml"
	DefaultEnvPrefix  = "GANTRY"

	SchemeHTTP  = "http"
	SchemeHTTPS = "https"

	// HTTP/2 inbound requests arrive translated to HTTP/1.1 frames with the
	// stream id carried in this extension header. It is echoed on the response
	// so the downstream codec can correlate the stream.
	HeaderStreamID = "x-http2-stream-id"
)
