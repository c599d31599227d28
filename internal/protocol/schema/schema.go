package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/lvctl/internal/protocol/value"
	"github.com/rs/zerolog/log"
)

var ErrInvalidDocument = errors.New("schema: invalid document")

// Command names a host operation. The set is open: any non-empty name may be
// sent, the constants below are the ones the listener ships with.
type Command string

const (
	CommandRunVI         Command = "run_vi_synchronous"
	CommandDescribeError Command = "describe_error"
	CommandSetControls   Command = "set_controls"
	CommandGetIndicators Command = "get_indicators"
)

// Top-level document field names.
const (
	FieldCommand    = "command"
	FieldRequestID  = "request_id"
	FieldVIPath     = "vi_path"
	FieldControls   = "controls"
	FieldIndicators = "indicators"
	FieldError      = "error"

	FieldRunOptions                = "run_options"
	FieldOpenFrontPanel            = "open_frontpanel"
	FieldIndicatorNames            = "indicator_names"
	FieldProjectPath               = "project_path"
	FieldTargetName                = "target_name"
	FieldIgnoreNonexistentControls = "ignore_nonexistent_controls"

	// FieldMessage carries the describe_error text inside indicators.
	FieldMessage = "msg"
)

type requirement struct {
	Name string
	Kind value.Kind
}

var requestRequirements = []requirement{
	{FieldCommand, value.KindText},
	{FieldVIPath, value.KindText},
	{FieldControls, value.KindRecord},
}

var optionalRequestFields = map[string]value.Kind{
	FieldRequestID:                 value.KindText,
	FieldRunOptions:                value.KindI32,
	FieldOpenFrontPanel:            value.KindBool,
	FieldIndicatorNames:            value.KindArray,
	FieldProjectPath:               value.KindText,
	FieldTargetName:                value.KindText,
	FieldIgnoreNonexistentControls: value.KindBool,
}

type ValidationError struct {
	Document string
	Field    string
	Reason   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: %s: %s", e.Document, e.Reason)
	}
	return fmt.Sprintf("schema: %s field=%q: %s", e.Document, e.Field, e.Reason)
}

func (e ValidationError) Unwrap() error {
	return ErrInvalidDocument
}

// Request is one command addressed to the host.
type Request struct {
	Command   Command
	RequestID string
	VIPath    string
	Controls  value.Record
	// Params carries command-specific top-level fields in order.
	Params []value.Field
}

// Param returns a command-specific field.
func (r Request) Param(name string) (value.Value, bool) {
	return value.Record{Fields: r.Params}.Get(name)
}

// Record builds the request document.
func (r Request) Record() (value.Record, error) {
	if strings.TrimSpace(string(r.Command)) == "" {
		return value.Record{}, ValidationError{Document: "request", Field: FieldCommand, Reason: "empty command"}
	}
	doc := value.NewRecord(value.F(FieldCommand, value.Text(r.Command)))
	if r.RequestID != "" {
		doc.Fields = append(doc.Fields, value.F(FieldRequestID, value.Text(r.RequestID)))
	}
	doc.Fields = append(doc.Fields,
		value.F(FieldVIPath, value.Text(r.VIPath)),
		value.F(FieldControls, r.Controls),
	)
	for _, p := range r.Params {
		if doc.Has(p.Name) {
			return value.Record{}, ValidationError{Document: "request", Field: p.Name, Reason: "duplicate field"}
		}
		doc.Fields = append(doc.Fields, p)
	}
	return doc, nil
}

// EncodeRequest builds and encodes the request document.
func EncodeRequest(r Request) ([]byte, error) {
	doc, err := r.Record()
	if err != nil {
		return nil, err
	}
	return value.Encode(doc)
}

// DecodeRequest parses a request document. Unknown top-level fields are kept
// in Params.
func DecodeRequest(data []byte) (Request, error) {
	doc, err := value.DecodeRecord(data)
	if err != nil {
		return Request{}, err
	}
	return RequestFromRecord(doc)
}

// RequestFromRecord validates doc and maps it onto a Request.
func RequestFromRecord(doc value.Record) (Request, error) {
	if err := validate("request", doc, requestRequirements); err != nil {
		return Request{}, err
	}
	for name, kind := range optionalRequestFields {
		if v, ok := doc.Get(name); ok && v.Kind() != kind {
			return Request{}, ValidationError{Document: "request", Field: name, Reason: "type mismatch"}
		}
	}
	cmd, _ := doc.Text(FieldCommand)
	viPath, _ := doc.Text(FieldVIPath)
	controls, _ := doc.Record(FieldControls)
	req := Request{
		Command:  Command(cmd),
		VIPath:   viPath,
		Controls: controls,
	}
	if id, err := doc.Text(FieldRequestID); err == nil {
		req.RequestID = id
	}
	for _, f := range doc.Fields {
		switch f.Name {
		case FieldCommand, FieldRequestID, FieldVIPath, FieldControls:
			continue
		}
		req.Params = append(req.Params, f)
	}
	return req, nil
}

// Response is the host's reply. Fault is set when the reply carries an error
// cluster; a fault with Status=false is kept as reported.
type Response struct {
	RequestID  string
	Indicators value.Record
	Fault      *ErrorCluster
}

// Faulted reports whether the host flagged an error.
func (r Response) Faulted() bool {
	return r.Fault != nil && r.Fault.Status
}

// Record builds the response document.
func (r Response) Record() value.Record {
	doc := value.Record{}
	if r.RequestID != "" {
		doc.Fields = append(doc.Fields, value.F(FieldRequestID, value.Text(r.RequestID)))
	}
	doc.Fields = append(doc.Fields, value.F(FieldIndicators, r.Indicators))
	if r.Fault != nil {
		doc.Fields = append(doc.Fields, value.F(FieldError, r.Fault.Record()))
	}
	return doc
}

func EncodeResponse(r Response) ([]byte, error) {
	return value.Encode(r.Record())
}

func DecodeResponse(data []byte) (Response, error) {
	doc, err := value.DecodeRecord(data)
	if err != nil {
		return Response{}, err
	}
	return ResponseFromRecord(doc)
}

// ResponseFromRecord requires indicators, an error cluster, or both.
func ResponseFromRecord(doc value.Record) (Response, error) {
	var resp Response
	if v, ok := doc.Get(FieldRequestID); ok {
		id, isText := v.(value.Text)
		if !isText {
			return Response{}, ValidationError{Document: "response", Field: FieldRequestID, Reason: "type mismatch"}
		}
		resp.RequestID = string(id)
	}
	hasIndicators := doc.Has(FieldIndicators)
	if hasIndicators {
		indicators, err := doc.Record(FieldIndicators)
		if err != nil {
			return Response{}, ValidationError{Document: "response", Field: FieldIndicators, Reason: "type mismatch"}
		}
		resp.Indicators = indicators
	}
	if raw, ok := doc.Get(FieldError); ok {
		rec, isRecord := raw.(value.Record)
		if !isRecord {
			return Response{}, ValidationError{Document: "response", Field: FieldError, Reason: "type mismatch"}
		}
		ec, err := ErrorClusterFromRecord(rec)
		if err != nil {
			return Response{}, err
		}
		resp.Fault = &ec
	} else if !hasIndicators {
		return Response{}, ValidationError{Document: "response", Reason: "missing indicators and error"}
	}
	return resp, nil
}

func validate(document string, doc value.Record, reqs []requirement) error {
	for _, req := range reqs {
		v, found := doc.Get(req.Name)
		if !found {
			log.Debug().Str("document", document).Str("field", req.Name).Msg("schema.validate missing field")
			return ValidationError{Document: document, Field: req.Name, Reason: "missing required field"}
		}
		if v == nil || v.Kind() != req.Kind {
			log.Debug().Str("document", document).Str("field", req.Name).Msg("schema.validate type mismatch")
			return ValidationError{Document: document, Field: req.Name, Reason: "type mismatch"}
		}
	}
	return nil
}
