package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/cmd/util"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs([]string{"version"})
	if err := RootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "hioload-relay v"+util.Version) {
		t.Errorf("version output %q", out.String())
	}

	out.Reset()
	RootCmd.SetArgs([]string{"version", "--json"})
	if err := RootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	var info api.ServiceInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version --json: %v (%q)", err, out.String())
	}
	if info.Name != "hioload-relay" || info.Version != util.Version {
		t.Errorf("service info %+v", info)
	}
}

func TestWrapString(t *testing.T) {
	long := strings.Repeat("word ", 40)
	for _, line := range strings.Split(util.WrapString(long), "\n") {
		if len(line) > util.Wrap {
			t.Errorf("line longer than %d: %q", util.Wrap, line)
		}
	}
}
