// Package encoder discovers working H.264 encoders and picks one for a
// capture session. Hardware encoders are verified with a one-frame test
// encode against a synthetic source; a failed probe is a diagnostic, not
// an error, unless every candidate fails.
package encoder

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an encoder family.
type Kind string

const (
	KindVAAPI    Kind = "vaapi"
	KindNVENC    Kind = "nvenc"
	KindQSV      Kind = "qsv"
	KindSoftware Kind = "software"
)

// ErrNoEncoderAvailable indicates every candidate encoder failed its probe.
var ErrNoEncoderAvailable = errors.New("no encoder available")

// DefaultOrder is the probe priority when the config does not override it.
func DefaultOrder() []Kind {
	return []Kind{KindVAAPI, KindNVENC, KindQSV, KindSoftware}
}

// Profile describes one concrete encoder candidate.
type Profile struct {
	Kind      Kind
	Codec     string
	Device    string
	Name      string
	Available bool
}

// Hardware reports whether the profile uses a hardware encode path.
func (p Profile) Hardware() bool {
	return p.Kind != KindSoftware && p.Kind != ""
}

// Label returns a human-readable identifier for logs and status output.
func (p Profile) Label() string {
	if p.Device != "" {
		return fmt.Sprintf("%s (%s)", p.Codec, p.Device)
	}
	return p.Codec
}

// ParseKind converts a config string into a Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindVAAPI:
		return KindVAAPI, true
	case KindNVENC:
		return KindNVENC, true
	case KindQSV:
		return KindQSV, true
	case KindSoftware:
		return KindSoftware, true
	default:
		return "", false
	}
}

// ParseOrder converts config order strings into Kinds, dropping unknown
// entries. An empty result falls back to the default order.
func ParseOrder(values []string) []Kind {
	order := make([]Kind, 0, len(values))
	seen := make(map[Kind]struct{}, len(values))
	for _, value := range values {
		kind, ok := ParseKind(value)
		if !ok {
			continue
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		order = append(order, kind)
	}
	if len(order) == 0 {
		return DefaultOrder()
	}
	return order
}

func codecFor(kind Kind) string {
	switch kind {
	case KindVAAPI:
		return "h264_vaapi"
	case KindNVENC:
		return "h264_nvenc"
	case KindQSV:
		return "h264_qsv"
	default:
		return "libx264"
	}
}

func nameFor(kind Kind) string {
	switch kind {
	case KindVAAPI:
		return "VAAPI hardware encoder"
	case KindNVENC:
		return "NVIDIA NVENC hardware encoder"
	case KindQSV:
		return "Intel Quick Sync hardware encoder"
	default:
		return "libx264 software encoder"
	}
}
