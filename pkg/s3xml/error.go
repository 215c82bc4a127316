package s3xml

import (
	"encoding/xml"
	"fmt"
)

// ErrorResponse is the body of a non-2xx S3 response.
type ErrorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message,omitempty"`
	Resource  string   `xml:"Resource,omitempty"`
	RequestID string   `xml:"RequestId,omitempty"`
}

func (e *ErrorResponse) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DecodeErrorResponse parses an error body. Bodies without a Code element
// (HEAD responses, proxies returning HTML) yield an InvalidNodeError.
func DecodeErrorResponse(data []byte) (*ErrorResponse, error) {
	var resp ErrorResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, syntaxError("Error", err)
	}
	if resp.Code == "" {
		return nil, &InvalidNodeError{Field: "Error.Code", Reason: "missing", Node: string(data)}
	}
	return &resp, nil
}

// EncodeErrorResponse renders an error body.
func EncodeErrorResponse(resp *ErrorResponse) ([]byte, error) {
	return marshal(resp)
}
