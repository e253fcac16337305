package responseformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// Format selects an output encoding
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgPack Format = "msgpack"
	FormatText    Format = "text"
)

// ParseFormat validates a format name. An empty name means JSON.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgPack:
		return FormatMsgPack, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q: use json, msgpack or text", name)
	}
}

// TextWriter is implemented by values that can render themselves as text
type TextWriter interface {
	WriteText(w io.Writer) error
}

// Formatter handles encoding and writing responses in JSON or MessagePack format
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// WriteResponse writes data with the given status code. JSON is the default
// format; MessagePack is used when format=msgpack is specified. The body is
// encoded before the header is sent, so a value that cannot be encoded turns
// into a 500 error body and the returned error.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	format := FormatJSON
	if req.URL.Query().Get("format") == string(FormatMsgPack) {
		format = FormatMsgPack
	}

	var buf bytes.Buffer
	if err := f.Encode(&buf, format, data); err != nil {
		buf.Reset()
		if encErr := f.Encode(&buf, format, ErrorBody{Error: "failed to encode response"}); encErr != nil {
			return fmt.Errorf("failed to encode error body: %w", encErr)
		}
		w.Header().Set("Content-Type", ContentType(format))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(buf.Bytes())
		return fmt.Errorf("failed to encode %T response: %w", data, err)
	}

	w.Header().Set("Content-Type", ContentType(format))
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError writes an {"error": msg} body with the given status code
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, msg string) error {
	return f.WriteResponse(w, req, status, ErrorBody{Error: msg})
}

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error string `json:"error"`
}

// ContentType returns the MIME type for a format
func ContentType(format Format) string {
	switch format {
	case FormatMsgPack:
		return "application/x-msgpack"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Encode writes data to w in the requested format. JSON sorts map keys;
// MessagePack sorts string-keyed generic maps, and estimate.Results sorts
// itself, so equal reports always encode to equal bytes.
func (f *Formatter) Encode(w io.Writer, format Format, data any) error {
	switch format {
	case FormatMsgPack:
		return f.writeMsgPack(w, data)
	case FormatText:
		tw, ok := data.(TextWriter)
		if !ok {
			return fmt.Errorf("%T has no text representation", data)
		}
		return tw.WriteText(w)
	default:
		return f.writeJSON(w, data)
	}
}

func (f *Formatter) writeJSON(w io.Writer, data any) error {
	return json.NewEncoder(w).Encode(data)
}

// writeMsgPack encodes the typed value using its json tags, so field names
// and omissions match the JSON output and floats stay floats.
func (f *Formatter) writeMsgPack(w io.Writer, data any) error {
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json")
	encoder.SetSortMapKeys(true)
	return encoder.Encode(data)
}
