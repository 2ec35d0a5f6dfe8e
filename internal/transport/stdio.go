// Package transport implements the LSP-style Content-Length framing the
// core expects from its bidirectional stream: each frame is a small
// header block followed by a UTF-8 JSON body, read on one goroutine and
// written on another so a slow reader never blocks an outbound response.
package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpcerr"
)

// Stdio frames rpc.Message values over an arbitrary io.Reader/io.Writer
// pair (typically os.Stdin/os.Stdout). Reading happens on the caller's
// goroutine via Recv; writing is serialized internally so concurrent
// Send calls from the main loop and worker goroutines never interleave
// two frames' bytes.
type Stdio struct {
	logger *slog.Logger
	r      *bufio.Reader

	writeMu sync.Mutex
	w       io.Writer
}

// NewStdio wraps r/w with Content-Length framing.
func NewStdio(logger *slog.Logger, r io.Reader, w io.Writer) *Stdio {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stdio{logger: logger, r: bufio.NewReader(r), w: w}
}

// wireMessage is the JSON-RPC 2.0 envelope actually written to/read from
// the wire; rpc.Message is the core's internal sum type and never has
// its own "jsonrpc" field.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Recv blocks until one frame has been read, decoded and classified into
// a Request, Response or Notification. It returns io.EOF when the stream
// closes cleanly between frames.
func (s *Stdio) Recv() (rpc.Message, error) {
	body, err := s.readFrame()
	if err != nil {
		return rpc.Message{}, err
	}

	var wm wireMessage
	if err := json.Unmarshal(body, &wm); err != nil {
		return rpc.Message{}, fmt.Errorf("transport: decode frame: %w", err)
	}

	return wireToMessage(wm), nil
}

func (s *Stdio) readFrame() ([]byte, error) {
	contentLength := -1
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("transport: malformed Content-Length header %q: %w", value, err)
		}
		contentLength = n
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("transport: frame missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return nil, fmt.Errorf("transport: read body: %w", err)
	}
	return body, nil
}

// Send writes one frame. Safe for concurrent use.
func (s *Stdio) Send(msg rpc.Message) error {
	wm := messageToWire(msg)
	body, err := json.Marshal(wm)
	if err != nil {
		return fmt.Errorf("transport: encode frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := io.WriteString(s.w, header); err != nil {
		return fmt.Errorf("transport: write header: %w", err)
	}
	if _, err := s.w.Write(body); err != nil {
		return fmt.Errorf("transport: write body: %w", err)
	}
	return nil
}

func wireToMessage(wm wireMessage) rpc.Message {
	switch {
	case wm.Method != "" && len(wm.Id) > 0:
		var id bsp.RequestId
		_ = json.Unmarshal(wm.Id, &id)
		return rpc.Message{Request: &rpc.Request{Id: id, Method: wm.Method, Params: wm.Params}}
	case wm.Method != "":
		return rpc.Message{Notification: &rpc.Notification{Method: wm.Method, Params: wm.Params}}
	default:
		var id bsp.RequestId
		_ = json.Unmarshal(wm.Id, &id)
		resp := &rpc.Response{Id: id, Result: wm.Result}
		if wm.Error != nil {
			resp.Error = rpcerr.New(rpcerr.Code(wm.Error.Code), wm.Error.Message)
		}
		return rpc.Message{Response: resp}
	}
}

func messageToWire(msg rpc.Message) wireMessage {
	wm := wireMessage{JSONRPC: "2.0"}
	switch {
	case msg.Request != nil:
		wm.Id, _ = json.Marshal(msg.Request.Id.Value())
		wm.Method = msg.Request.Method
		wm.Params = msg.Request.Params
	case msg.Notification != nil:
		wm.Method = msg.Notification.Method
		wm.Params = msg.Notification.Params
	case msg.Response != nil:
		wm.Id, _ = json.Marshal(msg.Response.Id.Value())
		wm.Result = msg.Response.Result
		if msg.Response.Error != nil {
			wm.Error = &wireError{Code: int(msg.Response.Error.Code), Message: msg.Response.Error.Message}
		}
	}
	return wm
}
