package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Attempt records one relay endpoint trial within a fetch.
type Attempt struct {
	// Endpoint is the relay prefix that was tried.
	Endpoint string `json:"endpoint"`

	// StatusCode is the HTTP status returned by the relay, or 0 when the
	// request never produced a response.
	StatusCode int `json:"status_code,omitempty"`

	// Error is the failure message. Empty for the successful attempt.
	Error string `json:"error,omitempty"`

	// Duration is how long the trial took.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether this attempt produced the returned body.
func (a Attempt) Succeeded() bool {
	return a.Error == ""
}

// FetchOutcome is the success arm of a retrieval: the decoded text of the
// target plus the metadata needed to explain how it was obtained.
// The failure arm is fetch.RetrievalError.
type FetchOutcome struct {
	// Target is the URL that was requested through the relays.
	Target string `json:"target"`

	// Text is the decoded document text.
	Text string `json:"-"`

	// Charset is the encoding used to decode Text.
	Charset CharsetCandidate `json:"charset"`

	// Endpoint is the relay prefix that served the response.
	Endpoint string `json:"endpoint"`

	// StatusCode is the HTTP status of the successful response.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type header of the successful response.
	ContentType string `json:"content_type,omitempty"`

	// Attempts lists every endpoint tried, in order, including the winner.
	Attempts []Attempt `json:"attempts"`

	// Size is the number of raw bytes read from the relay.
	Size int `json:"size"`

	// Hash is the SHA-256 hash of the raw body.
	Hash string `json:"hash"`
}

// ComputeHash calculates and sets the SHA-256 hash of the raw body.
func (f *FetchOutcome) ComputeHash(raw []byte) {
	f.Size = len(raw)
	if len(raw) == 0 {
		f.Hash = ""
		return
	}

	hash := sha256.Sum256(raw)
	f.Hash = hex.EncodeToString(hash[:])
}
