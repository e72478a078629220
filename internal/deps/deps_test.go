package deps

import "testing"

func TestCheckBinaries(t *testing.T) {
	statuses := CheckBinaries([]Requirement{
		{Name: "Shell", Command: "sh", Description: "posix shell"},
		{Name: "Missing", Command: "definitely-not-a-binary-xyz"},
		{Name: "Unset", Command: " "},
	})
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Available {
		t.Fatalf("expected sh to be available: %+v", statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Fatalf("expected missing binary with detail: %+v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Fatalf("expected unconfigured detail: %+v", statuses[2])
	}
}

func TestRequirementsIncludeCaptureStack(t *testing.T) {
	reqs := Requirements()
	byCmd := make(map[string]Requirement, len(reqs))
	for _, req := range reqs {
		byCmd[req.Command] = req
	}
	for _, cmd := range []string{"ffmpeg", "ffprobe", "pactl"} {
		if _, ok := byCmd[cmd]; !ok {
			t.Fatalf("expected requirement for %s", cmd)
		}
	}
	if byCmd["ffmpeg"].Optional {
		t.Fatal("ffmpeg must be required")
	}
}
