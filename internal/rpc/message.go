// Package rpc defines the JSON-RPC 2.0 message envelope the core
// exchanges with the (external) transport layer: a Receiver of inbound
// Request/Notification frames and a Sender of outbound
// Response/Notification frames. Framing, header parsing and the actual
// stream are the transport's concern, not this package's.
package rpc

import (
	"encoding/json"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpcerr"
)

// Message is the sum type the core sends and receives: exactly one of
// Request, Response or Notification is non-nil.
type Message struct {
	Request      *Request
	Response     *Response
	Notification *Notification
}

// Request is an inbound call expecting a Response.
type Request struct {
	Id     bsp.RequestId   `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers a Request by id, either with a result or an error.
type Response struct {
	Id     bsp.RequestId  `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcerr.Error   `json:"error,omitempty"`
}

// Notification carries no id and expects no reply.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewNotification marshals params and wraps it as an outbound Message.
func NewNotification(method string, params any) Message {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Message{Notification: &Notification{Method: method, Params: raw}}
}

// NewResult wraps a successful response as an outbound Message.
func NewResult(id bsp.RequestId, result any) Message {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Message{Response: &Response{Id: id, Result: raw}}
}

// NewError wraps a failed response as an outbound Message.
func NewError(id bsp.RequestId, err *rpcerr.Error) Message {
	return Message{Response: &Response{Id: id, Error: err}}
}
