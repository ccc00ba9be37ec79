package upnp

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/rctl/internal/monitoring"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	soapEncodingNS = "http://schemas.xmlsoap.org/soap/encoding/"

	maxResponseSize = 8 << 20
)

// Arg is one named action argument. Order is preserved on the wire.
type Arg struct {
	Name  string
	Value string
}

// Result holds the output arguments of an action, keyed case-insensitively.
type Result map[string]string

func (r Result) Get(name string) string { return r[strings.ToLower(name)] }

func (r Result) Lookup(name string) (string, bool) {
	v, ok := r[strings.ToLower(name)]
	return v, ok
}

// Int parses an output argument as an integer.
func (r Result) Int(name string) (int, error) {
	v, ok := r.Lookup(name)
	if !ok {
		return 0, MissingError(name)
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, FormatError(name, v, err)
	}
	return i, nil
}

// BuildRequest renders the SOAP 1.1 envelope for an action call.
func BuildRequest(serviceType, action string, args []Arg) ([]byte, error) {
	var inner bytes.Buffer
	for _, a := range args {
		inner.WriteString("<" + a.Name + ">")
		if err := xml.EscapeText(&inner, []byte(a.Value)); err != nil {
			return nil, fmt.Errorf("escape argument %s: %w", a.Name, err)
		}
		inner.WriteString("</" + a.Name + ">")
	}
	env := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="%s" s:encodingStyle="%s">
  <s:Body>
    <u:%s xmlns:u="%s">%s</u:%s>
  </s:Body>
</s:Envelope>`, soapEnvelopeNS, soapEncodingNS, action, serviceType, inner.String(), action)
	return []byte(env), nil
}

// SOAPActionHeader is the quoted SOAPACTION header value.
func SOAPActionHeader(serviceType, action string) string {
	return `"` + serviceType + "#" + action + `"`
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    struct {
		Fault    *soapFault    `xml:"http://schemas.xmlsoap.org/soap/envelope/ Fault"`
		Elements []soapElement `xml:",any"`
	} `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
}

type soapElement struct {
	XMLName xml.Name
	Args    []struct {
		XMLName xml.Name
		Value   string `xml:",chardata"`
	} `xml:",any"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
	Detail      struct {
		UPnPError struct {
			ErrorCode        string `xml:"errorCode"`
			ErrorDescription string `xml:"errorDescription"`
		} `xml:"UPnPError"`
	} `xml:"detail"`
}

func (f *soapFault) serviceError() *ServiceError {
	code, err := strconv.Atoi(strings.TrimSpace(f.Detail.UPnPError.ErrorCode))
	if err != nil {
		code = 0
	}
	desc := strings.TrimSpace(f.Detail.UPnPError.ErrorDescription)
	if desc == "" {
		desc = strings.TrimSpace(f.FaultString)
	}
	return &ServiceError{Code: code, Description: desc}
}

func decodeEnvelope(body []byte) (*soapEnvelope, error) {
	var env soapEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (env *soapEnvelope) result(serviceType, action string) (Result, error) {
	want := action + "Response"
	for _, el := range env.Body.Elements {
		if el.XMLName.Local != want {
			continue
		}
		if !sameServiceType(el.XMLName.Space, serviceType) {
			return nil, FormatError(want, el.XMLName.Space, errors.New("response namespace mismatch"))
		}
		res := make(Result, len(el.Args))
		for _, a := range el.Args {
			res[strings.ToLower(a.XMLName.Local)] = a.Value
		}
		return res, nil
	}
	return nil, FormatError(want, "", errors.New("response element missing"))
}

// ParseResponse parses a SOAP response body. A fault becomes *ServiceError,
// an unexpected body shape a ParseError.
func ParseResponse(body []byte, serviceType, action string) (Result, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, FormatError("Envelope", "", err)
	}
	if env.Body.Fault != nil {
		return nil, env.Body.Fault.serviceError()
	}
	return env.result(serviceType, action)
}

// sameServiceType compares two service type URNs ignoring their version.
func sameServiceType(a, b string) bool {
	ta, _ := SplitType(a)
	tb, _ := SplitType(b)
	return strings.EqualFold(ta, tb)
}

// Client issues description fetches and SOAP calls.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

func NewClient(hc *http.Client, userAgent string) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{HTTP: hc, UserAgent: userAgent}
}

// Get fetches a document such as a device description.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{Op: "GET", URL: rawURL, Err: err}
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "GET", URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Op: "GET", URL: rawURL, Err: fmt.Errorf("reading body: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return nil, &TransportError{Op: "GET", URL: rawURL, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	return body, nil
}

// Invoke calls action on the service at controlURL.
func (c *Client) Invoke(ctx context.Context, controlURL, serviceType, action string, args ...Arg) (Result, error) {
	metrics := monitoring.GetMetrics()
	metrics.RecordUPnPAction()

	payload, err := BuildRequest(serviceType, action, args)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, bytes.NewReader(payload))
	if err != nil {
		metrics.RecordTransportError()
		return nil, &TransportError{Op: "POST", URL: controlURL, Err: err}
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header["SOAPACTION"] = []string{SOAPActionHeader(serviceType, action)}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	log.CtxDebug(ctx, "soap request url=%s action=%s body=%s", controlURL, action, string(payload))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.RecordTransportError()
		return nil, &TransportError{Op: "POST", URL: controlURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		metrics.RecordTransportError()
		return nil, &TransportError{Op: "POST", URL: controlURL, Status: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	log.CtxDebug(ctx, "soap response url=%s action=%s status=%d body=%s", controlURL, action, resp.StatusCode, string(body))

	env, err := decodeEnvelope(body)
	if err != nil {
		metrics.RecordTransportError()
		return nil, &TransportError{Op: "POST", URL: controlURL, Status: resp.StatusCode, Err: fmt.Errorf("non-SOAP response: %w", err)}
	}
	if env.Body.Fault != nil {
		metrics.RecordUPnPError()
		return nil, env.Body.Fault.serviceError()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordTransportError()
		return nil, &TransportError{Op: "POST", URL: controlURL, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	return env.result(serviceType, action)
}
