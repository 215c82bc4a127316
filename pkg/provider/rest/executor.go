package rest

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// Request is one bucket-scoped S3 call.
type Request struct {
	// Method is the HTTP method, including the Wasabi MOVE extension.
	Method string

	// Path is the object key, unescaped. Empty addresses the bucket itself.
	Path string

	// Parameters are the query parameters, including subresources such as
	// "versions" or "delete" with empty values.
	Parameters url.Values

	// ExtraHeaders are set on the request before signing.
	ExtraHeaders map[string]string

	ContentType string
	Body        []byte
}

// Response is the raw service response. The caller must close Body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Executor sends a request and returns the raw response.
//
// Implementations return an error only when no response was received; HTTP
// error statuses are returned as responses.
type Executor interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// SignedExecutor signs requests with SigV4 and sends them over HTTP.
//
// It is safe for concurrent use.
type SignedExecutor struct {
	endpoint    *url.URL
	bucket      string
	region      string
	pathStyle   bool
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	client      *http.Client
	now         func() time.Time
}

var _ Executor = (*SignedExecutor)(nil)

// ExecutorConfig configures a SignedExecutor.
type ExecutorConfig struct {
	// Endpoint is the service URL, e.g. https://s3.wasabisys.com.
	// Empty selects the AWS regional endpoint.
	Endpoint string

	Bucket string
	Region string

	// PathStyle addresses the bucket in the path instead of the host name.
	PathStyle bool

	Credentials aws.CredentialsProvider

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// NewSignedExecutor creates an executor for one bucket.
func NewSignedExecutor(cfg ExecutorConfig) (*SignedExecutor, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("rest executor: bucket is required")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("rest executor: credentials are required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = awsEndpoint(cfg.Region)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("rest executor: parse endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("rest executor: endpoint %q must include scheme and host", endpoint)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &SignedExecutor{
		endpoint:    u,
		bucket:      cfg.Bucket,
		region:      cfg.Region,
		pathStyle:   cfg.PathStyle,
		credentials: cfg.Credentials,
		signer: v4.NewSigner(func(o *v4.SignerOptions) {
			// S3 signs the path exactly as sent.
			o.DisableURIPathEscaping = true
		}),
		client: client,
		now:    time.Now,
	}, nil
}

// Do signs and sends the request.
func (e *SignedExecutor) Do(ctx context.Context, r *Request) (*Response, error) {
	req, err := e.build(ctx, r)
	if err != nil {
		return nil, err
	}

	creds, err := e.credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve credentials: %w", err)
	}

	sum := sha256.Sum256(r.Body)
	payloadHash := hex.EncodeToString(sum[:])
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	if err := e.signer.SignHTTP(ctx, creds, req, payloadHash, "s3", e.region, e.now().UTC()); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

func (e *SignedExecutor) build(ctx context.Context, r *Request) (*http.Request, error) {
	u := e.requestURL(r.Path)
	if len(r.Parameters) > 0 {
		u.RawQuery = r.Parameters.Encode()
	}

	var body io.Reader = http.NoBody
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, "", body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.URL = u
	req.Host = u.Host
	req.ContentLength = int64(len(r.Body))

	for k, v := range r.ExtraHeaders {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	if len(r.Body) > 0 {
		// Multi-object delete requires an integrity header.
		sum := md5.Sum(r.Body)
		req.Header.Set("Content-MD5", base64.StdEncoding.EncodeToString(sum[:]))
	}

	return req, nil
}

// requestURL addresses the bucket (path-style or virtual-hosted) and key.
func (e *SignedExecutor) requestURL(key string) *url.URL {
	u := *e.endpoint
	base := strings.TrimSuffix(u.Path, "/")

	var path string
	if e.pathStyle {
		path = base + "/" + e.bucket
		if key != "" {
			path += "/" + key
		}
	} else {
		u.Host = e.bucket + "." + u.Host
		path = base + "/" + key
	}

	u.Path = path
	u.RawPath = escapePath(path)
	u.RawQuery = ""
	return &u
}

// escapePath percent-encodes every byte outside the RFC 3986 unreserved set,
// keeping slashes.
func escapePath(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}

func awsEndpoint(region string) string {
	if region == "" || region == "us-east-1" {
		return "https://s3.amazonaws.com"
	}
	return fmt.Sprintf("https://s3.%s.amazonaws.com", region)
}
