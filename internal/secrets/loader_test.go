package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyFile, []byte("  file-secret\n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	emptyFile := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(emptyFile, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("writing empty file: %v", err)
	}

	cases := []struct {
		name    string
		src     Source
		want    string
		wantErr bool
	}{
		{name: "inline value", src: Source{Name: "api key", Value: " inline "}, want: "inline"},
		{name: "file wins over value", src: Source{Name: "api key", Value: "inline", File: keyFile}, want: "file-secret"},
		{name: "missing file", src: Source{Name: "api key", File: filepath.Join(t.TempDir(), "nope")}, wantErr: true},
		{name: "empty file", src: Source{Name: "api key", File: emptyFile}, wantErr: true},
		{name: "nothing configured", src: Source{Name: "api key"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Load(tc.src)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Load() = %q, want %q", got, tc.want)
			}
		})
	}
}
