// Copyright 2025 Certen Protocol
//
// Archiver posts a copy of a blob-mode batch's raw blob data to an
// off-chain archival endpoint, best-effort: failures are logged and
// swallowed, never surfaced as submission errors, since the archive
// is a convenience mirror and not part of the on-chain commitment
// path. It is only ever invoked by BlobStrategy: calldata-mode
// batches are already fully recoverable from the L1 tx itself.

package da

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

type archivePayload struct {
	VersionedHash string `json:"versioned_hash"`
	Data          string `json:"data"`
}

// Archiver posts batch payloads to an external archive over HTTP.
type Archiver struct {
	url        string
	httpClient *http.Client
	logger     *log.Logger
}

// ArchiverOption configures an Archiver.
type ArchiverOption func(*Archiver)

func WithArchiverHTTPClient(c *http.Client) ArchiverOption {
	return func(a *Archiver) { a.httpClient = c }
}

func WithArchiverLogger(l *log.Logger) ArchiverOption {
	return func(a *Archiver) { a.logger = l }
}

// NewArchiver returns nil if url is empty, signaling the caller should
// skip archival entirely (spec.md §6's da.archiver_url is optional).
func NewArchiver(url string, opts ...ArchiverOption) *Archiver {
	if url == "" {
		return nil
	}
	a := &Archiver{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log.New(log.Writer(), "[DA/archiver] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveBlob posts the raw blob bytes for versionedHash to
// {url}/blobs, logging and discarding any failure.
func (a *Archiver) ArchiveBlob(ctx context.Context, versionedHash [32]byte, data []byte) {
	if a == nil {
		return
	}

	hashHex := hex.EncodeToString(versionedHash[:])

	body, err := json.Marshal(archivePayload{
		VersionedHash: hashHex,
		Data:          hex.EncodeToString(data),
	})
	if err != nil {
		a.logger.Printf("blob %s: failed to marshal archive payload: %v", hashHex, err)
		return
	}

	endpoint := strings.TrimSuffix(a.url, "/") + "/blobs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		a.logger.Printf("blob %s: failed to build archive request: %v", hashHex, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Printf("blob %s: archive post failed: %v", hashHex, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Printf("blob %s: archive post returned status %d", hashHex, resp.StatusCode)
	}
}
