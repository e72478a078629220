package encoder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"clipforge/internal/logging"
)

func newTestSelector(t *testing.T, nodes []string, available map[string]bool) (*Selector, *[]string) {
	t.Helper()
	sel := NewSelector(logging.NewNop(), DefaultOrder())
	sel.renderNodes = func() []string { return nodes }
	probed := &[]string{}
	sel.runProbe = func(_ context.Context, args []string) error {
		codec := codecFromArgs(args)
		*probed = append(*probed, codec)
		if available[codec] {
			return nil
		}
		return errors.New("probe failed")
	}
	return sel, probed
}

func codecFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "-c:v" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestSelectFollowsPriorityOrder(t *testing.T) {
	sel, probed := newTestSelector(t, []string{"/dev/dri/renderD128"}, map[string]bool{
		"h264_nvenc": true,
		"libx264":    true,
	})

	profile, err := sel.Select(context.Background(), "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if profile.Kind != KindNVENC {
		t.Fatalf("expected nvenc after vaapi failure, got %s", profile.Kind)
	}
	// Short-circuit: qsv and software must never be probed.
	for _, codec := range *probed {
		if codec == "h264_qsv" || codec == "libx264" {
			t.Fatalf("probed %s after a selection was already possible", codec)
		}
	}
}

func TestSelectPreferredShortCircuits(t *testing.T) {
	sel, probed := newTestSelector(t, []string{"/dev/dri/renderD128"}, map[string]bool{
		"h264_vaapi": true,
		"libx264":    true,
	})

	profile, err := sel.Select(context.Background(), KindSoftware)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if profile.Kind != KindSoftware {
		t.Fatalf("expected preferred software encoder, got %s", profile.Kind)
	}
	if len(*probed) != 1 || (*probed)[0] != "libx264" {
		t.Fatalf("expected a single libx264 probe, got %v", *probed)
	}
}

func TestSelectExcludingSkipsFailedKind(t *testing.T) {
	sel, _ := newTestSelector(t, []string{"/dev/dri/renderD128"}, map[string]bool{
		"h264_vaapi": true,
		"libx264":    true,
	})

	profile, err := sel.SelectExcluding(context.Background(), KindVAAPI)
	if err != nil {
		t.Fatalf("SelectExcluding: %v", err)
	}
	if profile.Kind == KindVAAPI {
		t.Fatal("excluded kind must not be selected")
	}
	if profile.Kind != KindSoftware {
		t.Fatalf("expected software fallback, got %s", profile.Kind)
	}
}

func TestSelectAllFail(t *testing.T) {
	sel, _ := newTestSelector(t, []string{"/dev/dri/renderD128"}, nil)

	_, err := sel.Select(context.Background(), "")
	if !errors.Is(err, ErrNoEncoderAvailable) {
		t.Fatalf("expected ErrNoEncoderAvailable, got %v", err)
	}
}

func TestProbeCachesSnapshot(t *testing.T) {
	nodes := []string{"/dev/dri/renderD128", "/dev/dri/renderD129"}
	sel, _ := newTestSelector(t, nodes, map[string]bool{"libx264": true})

	profiles := sel.Probe(context.Background())
	// Two vaapi candidates plus nvenc, qsv, software.
	if len(profiles) != 5 {
		t.Fatalf("expected 5 candidates, got %d", len(profiles))
	}
	available := 0
	for _, p := range profiles {
		if p.Available {
			available++
			if p.Kind != KindSoftware {
				t.Fatalf("only software should be available, got %s", p.Kind)
			}
		}
	}
	if available != 1 {
		t.Fatalf("expected exactly one available profile, got %d", available)
	}

	cached := sel.Cached()
	if len(cached) != len(profiles) {
		t.Fatalf("cached snapshot mismatch: %d vs %d", len(cached), len(profiles))
	}
}

func TestProbeArgsVAAPIUsesDevice(t *testing.T) {
	args := probeArgs(Profile{Kind: KindVAAPI, Codec: "h264_vaapi", Device: "/dev/dri/renderD128"})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "vaapi=hw:/dev/dri/renderD128") {
		t.Fatalf("expected hw device init in args: %s", joined)
	}
	if !strings.Contains(joined, "-frames:v 1") {
		t.Fatalf("expected single-frame encode: %s", joined)
	}
}
