package domain

// SSLInfo captures the TLS handshake details the SSL handler leaves on the
// channel. Extraction itself happens outside this core.
type SSLInfo struct {
	Protocol       string
	CipherSuite    string
	PeerCommonName string
}

// RequestInfo is an immutable snapshot of the inbound request taken at
// receive time, kept for metrics and access logging after the live request
// has been mutated by filters.
type RequestInfo struct {
	Method   string
	Path     string
	Protocol string
	Scheme   string
	ClientIP string
	Headers  *Headers
}

// RequestMessage is the in-memory form of one inbound HTTP transaction as it
// flows through the filter pipeline.
type RequestMessage struct {
	ctx        *SessionContext
	Protocol   string
	Method     string
	Path       string
	Query      *QueryParams
	Headers    *Headers
	ClientIP   string
	Scheme     string
	Port       int
	ServerName string
	SSLInfo    *SSLInfo

	hasBody bool
	body    []*BodyBuffer
	inbound *RequestInfo
}

func NewRequestMessage(ctx *SessionContext, protocol, method, path string, query *QueryParams, headers *Headers, clientIP, scheme string, port int, serverName string) *RequestMessage {
	return &RequestMessage{
		ctx:        ctx,
		Protocol:   protocol,
		Method:     method,
		Path:       path,
		Query:      query,
		Headers:    headers,
		ClientIP:   clientIP,
		Scheme:     scheme,
		Port:       port,
		ServerName: serverName,
	}
}

func (r *RequestMessage) Context() *SessionContext {
	return r.ctx
}

func (r *RequestMessage) SetHasBody(hasBody bool) {
	r.hasBody = hasBody
}

func (r *RequestMessage) HasBody() bool {
	return r.hasBody
}

// BufferBodyContent appends a chunk to the pre-buffered body. Ownership of
// the chunk's reference transfers to the message.
func (r *RequestMessage) BufferBodyContent(chunk *BodyBuffer) {
	r.body = append(r.body, chunk)
}

func (r *RequestMessage) BodyContents() []*BodyBuffer {
	return r.body
}

func (r *RequestMessage) DisposeBufferedBody() {
	for _, chunk := range r.body {
		if chunk.Refs() > 0 {
			chunk.Release()
		}
	}
	r.body = nil
}

// StoreInboundRequest freezes the original request line and headers before
// filters mutate the live message.
func (r *RequestMessage) StoreInboundRequest() {
	r.inbound = &RequestInfo{
		Method:   r.Method,
		Path:     r.Path,
		Protocol: r.Protocol,
		Scheme:   r.Scheme,
		ClientIP: r.ClientIP,
		Headers:  r.Headers.Copy(),
	}
}

func (r *RequestMessage) InboundRequest() *RequestInfo {
	return r.inbound
}

// ResponseMessage is the filter pipeline's answer to one RequestMessage.
type ResponseMessage struct {
	Status  int
	Headers *Headers

	request *RequestMessage
	body    []*BodyBuffer
}

func NewResponseMessage(request *RequestMessage, status int) *ResponseMessage {
	return &ResponseMessage{
		Status:  status,
		Headers: NewHeaders(),
		request: request,
	}
}

func (r *ResponseMessage) Request() *RequestMessage {
	return r.request
}

func (r *ResponseMessage) Context() *SessionContext {
	if r.request == nil {
		return nil
	}
	return r.request.Context()
}

func (r *ResponseMessage) InboundRequest() *RequestInfo {
	if r.request == nil {
		return nil
	}
	if info := r.request.InboundRequest(); info != nil {
		return info
	}
	// Snapshot was never taken; fall back to the live request fields.
	return &RequestInfo{
		Method:   r.request.Method,
		Path:     r.request.Path,
		Protocol: r.request.Protocol,
		Scheme:   r.request.Scheme,
		ClientIP: r.request.ClientIP,
		Headers:  r.request.Headers,
	}
}

func (r *ResponseMessage) BufferBodyContent(chunk *BodyBuffer) {
	r.body = append(r.body, chunk)
}

func (r *ResponseMessage) BodyContents() []*BodyBuffer {
	return r.body
}

func (r *ResponseMessage) DisposeBufferedBody() {
	for _, chunk := range r.body {
		if chunk.Refs() > 0 {
			chunk.Release()
		}
	}
	r.body = nil
}
