package domain

import (
	"fmt"
	"strings"
	"time"
)

// Layout enumerates the canvas shapes offered by the configurator.
type Layout string

const (
	LayoutSquare Layout = "square"
	LayoutTall   Layout = "tall"
	LayoutWide   Layout = "wide"
)

// Dimensions maps a layout to the pixel size requested from providers.
func (l Layout) Dimensions() (width, height int, err error) {
	switch l {
	case LayoutSquare:
		return 1024, 1024, nil
	case LayoutTall:
		return 1024, 1792, nil
	case LayoutWide:
		return 1792, 1024, nil
	default:
		return 0, 0, &ValidationError{Field: "layout", Reason: fmt.Sprintf("unsupported layout %q", string(l))}
	}
}

// ParseLayout normalizes free-form input. Empty input maps to LayoutSquare.
func ParseLayout(raw string) (Layout, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return LayoutSquare, nil
	}
	l := Layout(raw)
	if _, _, err := l.Dimensions(); err != nil {
		return "", err
	}
	return l, nil
}

// ProviderKind identifies which generator produced an asset.
type ProviderKind string

const (
	ProviderMock ProviderKind = "mock"
	ProviderReal ProviderKind = "real"
)

// GeneratedAsset is the transient result of a generation request.
type GeneratedAsset struct {
	SourceURL    string
	ProviderKind ProviderKind
	Width        int
	Height       int
}

// OptimizedPrompt is the generation-ready rewrite of a raw prompt.
type OptimizedPrompt struct {
	Text           string
	UsedFallback   bool
	FallbackReason string
}

// PersistedAssetRecord is the durable pointer from an opaque id to the URL
// its bytes are delivered from. At most one record exists per ID.
type PersistedAssetRecord struct {
	ID           string
	CanonicalURL string
	OriginalURL  string
	CreatedAt    time.Time
	Degraded     bool
}

// PersistOutcome distinguishes the three possible results of persisting an asset.
type PersistOutcome string

const (
	PersistStored     PersistOutcome = "stored"
	PersistDegraded   PersistOutcome = "degraded"
	PersistUnrecorded PersistOutcome = "unrecorded"
)
