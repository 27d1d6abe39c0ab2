package model

import "github.com/rotisserie/eris"

// Verdict is the outcome of classifying a resource.
type Verdict string

const (
	VerdictCoded        Verdict = "coded"
	VerdictNotCoded     Verdict = "not_coded"
	VerdictUndetermined Verdict = "undetermined"
)

// Final reports whether the verdict may be persisted to the catalog.
func (v Verdict) Final() bool {
	return v == VerdictCoded || v == VerdictNotCoded
}

// Bool returns the catalog representation: true, false, or nil.
func (v Verdict) Bool() *bool {
	switch v {
	case VerdictCoded:
		b := true
		return &b
	case VerdictNotCoded:
		b := false
		return &b
	}
	return nil
}

// Error kinds surfaced by the classification pipeline.
var (
	ErrDownloadFailed       = eris.New("unable to download file")
	ErrExtractionFailed     = eris.New("unable to unzip resource")
	ErrReadFailed           = eris.New("unable to read resource")
	ErrMetadataUpdateFailed = eris.New("could not update resource")
)
