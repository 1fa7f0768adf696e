package cmd

import (
	"encoding/json"
	"os"
	"strconv"
	"testing"
)

func TestScanCommandJSONAgainstSelf(t *testing.T) {
	pid := strconv.Itoa(os.Getpid())
	out, err := execRoot(t, "scan", "--pid", pid, "--type", "byte", "--value", "0", "--json")
	if err != nil {
		t.Fatalf("execRoot: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("unmarshal: %v, out=%s", err, out)
	}
	if result["state"] != "complete" {
		t.Fatalf("expected completed scan, got state=%v", result["state"])
	}
}

func TestScanCommandRequiresPID(t *testing.T) {
	_, err := execRoot(t, "scan", "--type", "int", "--value", "1")
	if err == nil {
		t.Fatal("expected an error when --pid is omitted")
	}
}

func TestScanCommandRejectsUnknownType(t *testing.T) {
	pid := strconv.Itoa(os.Getpid())
	_, err := execRoot(t, "scan", "--pid", pid, "--type", "bogus", "--value", "1")
	if err == nil {
		t.Fatal("expected an error for an unknown value type")
	}
}
