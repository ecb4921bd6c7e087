package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaptext/internal/cli/config"
	"github.com/leapstack-labs/leaptext/internal/testutil"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut []string
		wantErr bool
	}{
		{
			name:    "default version",
			version: "0.1.0",
			wantOut: []string{"leaptext v0.1.0", "text-processing backend"},
		},
		{
			name:    "custom version",
			version: "1.2.3",
			wantOut: []string{"leaptext v1.2.3"},
		},
		{
			name:    "dev version",
			version: "dev",
			wantOut: []string{"leaptext vdev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			output := buf.String()
			for _, want := range tt.wantOut {
				if !strings.Contains(output, want) {
					t.Errorf("output should contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestVersionCommand_ShowsBackendAndUploads(t *testing.T) {
	fake := testutil.NewFakeBackend(t)
	useBackend(t, fake, "text")

	out, _, err := execute(t, NewVersionCommand("1.0.0"), "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, want := range []string{
		"Backend: " + fake.URL,
		"Uploads: .csv, .xlsx, .xls (up to 16777216 bytes)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got: %s", want, out)
		}
	}
	if got := config.GetCurrentConfig().Backend.URL; got != fake.URL {
		t.Errorf("loaded backend = %q, want %q", got, fake.URL)
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand("test")

	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}

	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}
}
