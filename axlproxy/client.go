package axlproxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Upstream is the CUCM AXL endpoint the proxy forwards to.
type Upstream struct {
	URL      string
	Version  string
	Username string
	Password string
	// CAFile, when set, replaces the system roots for the AXL certificate.
	CAFile             string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

func (u Upstream) validate() error {
	switch {
	case u.URL == "":
		return errors.New("axl url is required")
	case u.Version == "":
		return errors.New("axl schema version is required")
	case u.Username == "" || u.Password == "":
		return errors.New("axl credentials are required")
	}
	return nil
}

// Client posts SOAP envelopes to AXL with HTTP Basic credentials.
type Client struct {
	Upstream
	HTTP *http.Client
}

func NewClient(u Upstream) (*Client, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{InsecureSkipVerify: u.InsecureSkipVerify}
	if u.CAFile != "" {
		pem, err := os.ReadFile(u.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read axl CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", u.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	timeout := u.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &Client{Upstream: u, HTTP: &http.Client{Transport: transport, Timeout: timeout}}, nil
}

// Response is an upstream reply relayed as is.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Call posts envelope as the AXL operation op.
func (c *Client) Call(ctx context.Context, op string, envelope []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(envelope))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Username, c.Password)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", fmt.Sprintf(`"CUCM:DB ver=%s %s"`, c.Version, op))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("axl %s failed: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read axl %s response: %w", op, err)
	}
	return &Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}
