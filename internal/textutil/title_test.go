package textutil

import "testing"

func TestTitleFromFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"replay_goal.mkv", "Replay Goal"},
		{"/tmp/clips/boss-fight_take2.mp4", "Boss Fight Take2"},
		{"already titled.mkv", "Already Titled"},
		{"", ""},
		{"___.mkv", ""},
	}
	for _, tc := range cases {
		if got := TitleFromFileName(tc.in); got != tc.want {
			t.Fatalf("TitleFromFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("My Clip: Final?"); got != "my_clip__final" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := SanitizeToken("   "); got != "unknown" {
		t.Fatalf("expected unknown for blank input, got %q", got)
	}
}
