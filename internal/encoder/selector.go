package encoder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"clipforge/internal/logging"
)

const probeTimeout = 10 * time.Second

// Selector probes encoder candidates in priority order and caches results.
// Probing is idempotent: a probe run never mutates session state, it only
// refreshes the cached availability snapshot.
type Selector struct {
	logger *slog.Logger
	order  []Kind

	mu     sync.Mutex
	cached []Profile

	// Test hooks.
	runProbe    func(ctx context.Context, args []string) error
	renderNodes func() []string
}

// NewSelector constructs a selector with the given probe priority order.
func NewSelector(logger *slog.Logger, order []Kind) *Selector {
	if len(order) == 0 {
		order = DefaultOrder()
	}
	return &Selector{
		logger:      logging.NewComponentLogger(logger, "encoder"),
		order:       append([]Kind(nil), order...),
		runProbe:    runFFmpegProbe,
		renderNodes: findRenderNodes,
	}
}

// Select returns the first available encoder profile. When preferred names a
// kind that probes successfully, it short-circuits the priority order. Probe
// failures along the way are logged and skipped; ErrNoEncoderAvailable is
// returned only when every candidate fails.
func (s *Selector) Select(ctx context.Context, preferred Kind) (Profile, error) {
	return s.selectProfile(ctx, preferred, "")
}

// SelectExcluding behaves like Select but skips every candidate of the
// excluded kind. Used after a mid-session encoder loss so the replacement
// never lands on the encoder that just failed.
func (s *Selector) SelectExcluding(ctx context.Context, exclude Kind) (Profile, error) {
	return s.selectProfile(ctx, "", exclude)
}

func (s *Selector) selectProfile(ctx context.Context, preferred, exclude Kind) (Profile, error) {
	order := s.order
	if preferred != "" && preferred != exclude {
		reordered := make([]Kind, 0, len(order)+1)
		reordered = append(reordered, preferred)
		for _, kind := range order {
			if kind != preferred {
				reordered = append(reordered, kind)
			}
		}
		order = reordered
	}

	for _, kind := range order {
		if kind == exclude {
			continue
		}
		for _, candidate := range s.candidates(kind) {
			if err := ctx.Err(); err != nil {
				return Profile{}, err
			}
			if s.probe(ctx, &candidate) {
				s.logger.Info("encoder selected",
					logging.String(logging.FieldEncoder, candidate.Label()),
					logging.String(logging.FieldEventType, "encoder_selected"),
					logging.Bool("hardware", candidate.Hardware()),
				)
				return candidate, nil
			}
		}
	}
	return Profile{}, ErrNoEncoderAvailable
}

// Probe runs the full candidate set and refreshes the cached snapshot.
func (s *Selector) Probe(ctx context.Context) []Profile {
	profiles := make([]Profile, 0, len(s.order)+4)
	for _, kind := range s.order {
		for _, candidate := range s.candidates(kind) {
			candidate.Available = s.probe(ctx, &candidate)
			profiles = append(profiles, candidate)
		}
	}

	s.mu.Lock()
	s.cached = append([]Profile(nil), profiles...)
	s.mu.Unlock()
	return profiles
}

// Cached returns the profiles from the most recent full probe, if any.
func (s *Selector) Cached() []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Profile(nil), s.cached...)
}

func (s *Selector) candidates(kind Kind) []Profile {
	if kind == KindVAAPI {
		nodes := s.renderNodes()
		profiles := make([]Profile, 0, len(nodes))
		for _, node := range nodes {
			profiles = append(profiles, Profile{
				Kind:   KindVAAPI,
				Codec:  codecFor(KindVAAPI),
				Device: node,
				Name:   nameFor(KindVAAPI),
			})
		}
		return profiles
	}
	return []Profile{{Kind: kind, Codec: codecFor(kind), Name: nameFor(kind)}}
}

func (s *Selector) probe(ctx context.Context, p *Profile) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := s.runProbe(probeCtx, probeArgs(*p))
	if err != nil {
		s.logger.Debug("encoder probe failed",
			logging.String(logging.FieldEncoder, p.Label()),
			logging.Error(err),
		)
		p.Available = false
		return false
	}
	p.Available = true
	return true
}

func findRenderNodes() []string {
	matches, err := filepath.Glob("/dev/dri/renderD*")
	if err != nil {
		return nil
	}
	nodes := matches[:0]
	for _, match := range matches {
		if _, err := os.Stat(match); err == nil {
			nodes = append(nodes, match)
		}
	}
	sort.Strings(nodes)
	return nodes
}
