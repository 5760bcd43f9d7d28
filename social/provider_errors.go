package social

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ProviderError is the normalized shape of an upstream OAuth failure.
// Providers fill in whatever their API returned; the HTTP status, the
// provider's own error code, and the raw body all survive into metadata
// so a 401 from GitHub stays distinguishable from a 503.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
	Raw         map[string]any
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	var b strings.Builder
	switch {
	case e.Provider != "" && e.Operation != "":
		b.WriteString(e.Provider)
		b.WriteString(" ")
		b.WriteString(e.Operation)
	case e.Provider != "":
		b.WriteString(e.Provider)
	case e.Operation != "":
		b.WriteString(e.Operation)
	default:
		b.WriteString("provider")
	}
	b.WriteString(" failed")

	switch {
	case e.Description != "":
		b.WriteString(": " + e.Description)
	case e.Code != "":
		b.WriteString(": " + e.Code)
	case e.Err != nil:
		b.WriteString(": " + e.Err.Error())
	}

	return b.String()
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Metadata flattens the populated fields for attachment to a rich error.
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := make(map[string]any, 6)
	for k, v := range map[string]any{
		"provider":    e.Provider,
		"operation":   e.Operation,
		"code":        e.Code,
		"description": e.Description,
	} {
		if v != "" {
			meta[k] = v
		}
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if len(e.Raw) > 0 {
		meta["raw"] = e.Raw
	}

	return meta
}

// wrapProviderError attaches provider context to one of the package
// sentinels without mutating the shared sentinel value. The clone keeps
// the sentinel's category and text code; the original failure rides along
// as Source so errors.As still reaches the ProviderError underneath.
func wrapProviderError(base *goerrors.Error, provider, operation string, err error) error {
	if base == nil {
		return err
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}

	meta := map[string]any{}
	if provider != "" {
		meta["provider"] = provider
	}
	if operation != "" {
		meta["operation"] = operation
	}

	var perr *ProviderError
	switch {
	case errors.As(err, &perr) && perr != nil:
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	case err != nil:
		meta["error"] = err.Error()
	}

	if err != nil {
		clone.Source = err
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}

	return clone
}
