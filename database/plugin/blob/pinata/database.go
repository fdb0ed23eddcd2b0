// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pinata pins objects to IPFS through the Pinata pinning API.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/blinklabs-io/snap/database/plugin/blob"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	storeName = "pinata"

	DefaultAPIURL     = "https://api.pinata.cloud"
	DefaultGatewayURL = "https://gateway.pinata.cloud"

	pinFilePath = "/pinning/pinFileToIPFS"

	// maxErrorBody bounds how much of an error response is read
	maxErrorBody = 1 << 20
)

// BlobStorePinata pins objects to IPFS. The content id of a stored object is
// the IPFS CID that Pinata reports.
type BlobStorePinata struct {
	promRegistry prometheus.Registerer
	metrics      *blob.Metrics
	logger       *slog.Logger
	httpClient   *http.Client
	jwt          string
	apiURL       string
	gatewayURL   string
	timeout      time.Duration
}

type pinataMetadata struct {
	Name string `json:"name"`
}

type pinataOptions struct {
	CidVersion int `json:"cidVersion"`
}

type pinFileResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int    `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// NewWithOptions creates a Pinata-backed blob store using options
func NewWithOptions(opts ...BlobStorePinataOptionFunc) (*BlobStorePinata, error) {
	p := &BlobStorePinata{
		apiURL:     DefaultAPIURL,
		gatewayURL: DefaultGatewayURL,
		timeout:    60 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		// Create logger to throw away logs
		p.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: p.timeout}
	}
	p.apiURL = strings.TrimSuffix(p.apiURL, "/")
	p.gatewayURL = strings.TrimSuffix(p.gatewayURL, "/")
	return p, nil
}

// Start implements the plugin.Plugin interface. A missing JWT is not fatal
// here so that read-only deployments can run without one.
func (p *BlobStorePinata) Start() error {
	if p.jwt == "" {
		p.logger.Warn(
			"no Pinata JWT configured, uploads will fail",
			"component", "database",
		)
	}
	p.metrics = blob.RegisterMetrics(p.promRegistry)
	return nil
}

// Stop implements the plugin.Plugin interface
func (p *BlobStorePinata) Stop() error {
	return p.Close()
}

// SetLogger implements plugin.Instrumented
func (p *BlobStorePinata) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// SetPromRegistry implements plugin.Instrumented
func (p *BlobStorePinata) SetPromRegistry(registry prometheus.Registerer) {
	p.promRegistry = registry
}

// Close releases idle connections
func (p *BlobStorePinata) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// GatewayURI returns the public gateway URL for a CID
func (p *BlobStorePinata) GatewayURI(cid string) string {
	return p.gatewayURL + "/ipfs/" + cid
}

// Put pins an object with the given name as its Pinata metadata name
func (p *BlobStorePinata) Put(
	ctx context.Context,
	obj blob.Object,
) (*blob.StoredObject, error) {
	if p.jwt == "" {
		return nil, blob.ErrMissingCredential
	}
	if len(obj.Data) == 0 {
		return nil, blob.ErrEmptyObject
	}
	body, contentType, err := buildPinFileBody(obj)
	if err != nil {
		return nil, fmt.Errorf("pinata: build request body: %w", err)
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.apiURL+pinFilePath,
		body,
	)
	if err != nil {
		return nil, fmt.Errorf("pinata: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+p.jwt)
	var out pinFileResponse
	err = p.do(req, &out)
	if err == nil && out.IpfsHash == "" {
		err = errors.New("pinata: response has no IpfsHash")
	}
	p.metrics.Observe(storeName, "put", len(obj.Data), err)
	if err != nil {
		p.logger.Error(
			fmt.Sprintf("pinata upload of %q failed: %s", obj.Name, err),
			"component", "database",
		)
		return nil, err
	}
	p.logger.Info(
		fmt.Sprintf("pinned %q as %s (%d bytes)", obj.Name, out.IpfsHash, len(obj.Data)),
		"component", "database",
	)
	return &blob.StoredObject{
		ContentID: out.IpfsHash,
		URI:       p.GatewayURI(out.IpfsHash),
		Size:      len(obj.Data),
	}, nil
}

// Get fetches a pinned object through the gateway
func (p *BlobStorePinata) Get(
	ctx context.Context,
	contentID string,
) (*blob.Object, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		p.GatewayURI(contentID),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("pinata: create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.metrics.Observe(storeName, "get", 0, err)
		return nil, fmt.Errorf("pinata: do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode == http.StatusNotFound {
		p.metrics.Observe(storeName, "get", 0, blob.ErrObjectNotFound)
		return nil, blob.ErrObjectNotFound
	}
	if resp.StatusCode >= 300 {
		err := readHTTPError(resp)
		p.metrics.Observe(storeName, "get", 0, err)
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	p.metrics.Observe(storeName, "get", len(data), err)
	if err != nil {
		return nil, err
	}
	return &blob.Object{
		Name:        contentID,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (p *BlobStorePinata) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinata: do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readHTTPError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pinata: decode response: %w", err)
	}
	return nil
}

// readHTTPError builds an HTTPError from a failed response. Pinata reports
// errors either as {"error": "..."} or {"error": {"reason": "...", "details": "..."}}.
func readHTTPError(resp *http.Response) error {
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &blob.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read body: %v", err),
		}
	}
	var apiErr struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil && len(apiErr.Error) > 0 {
		var msg string
		if json.Unmarshal(apiErr.Error, &msg) == nil && msg != "" {
			return &blob.HTTPError{StatusCode: resp.StatusCode, Message: msg}
		}
		var detail struct {
			Reason  string `json:"reason"`
			Details string `json:"details"`
		}
		if json.Unmarshal(apiErr.Error, &detail) == nil && detail.Reason != "" {
			msg = detail.Reason
			if detail.Details != "" {
				msg += ": " + detail.Details
			}
			return &blob.HTTPError{StatusCode: resp.StatusCode, Message: msg}
		}
	}
	return &blob.HTTPError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(respBody)),
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func buildPinFileBody(obj blob.Object) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fileName := obj.Name
	if fileName == "" {
		fileName = blob.ContentID(obj.Data)
	}
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set(
		"Content-Disposition",
		fmt.Sprintf(
			`form-data; name="file"; filename="%s"`,
			quoteEscaper.Replace(fileName),
		),
	)
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	partHeader.Set("Content-Type", contentType)
	part, err := w.CreatePart(partHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(obj.Data); err != nil {
		return nil, "", err
	}
	metadata, err := json.Marshal(pinataMetadata{Name: obj.Name})
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("pinataMetadata", string(metadata)); err != nil {
		return nil, "", err
	}
	options, err := json.Marshal(pinataOptions{CidVersion: 1})
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("pinataOptions", string(options)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
