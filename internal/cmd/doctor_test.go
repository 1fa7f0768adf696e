package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
)

func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := NewRootCmd()
	buf := new(bytes.Buffer)
	c.SetOut(buf)
	c.SetErr(buf)
	c.SetArgs(args)
	err := c.Execute()
	return buf.String(), err
}

func withCheckers(t *testing.T, platform, simd, procfs, ptrace, cfgDir CheckResult) {
	t.Helper()
	origPlatform, origSIMD, origProcfs, origPtrace, origCfg := PlatformChecker, SIMDChecker, ProcfsChecker, PtraceChecker, ConfigDirChecker
	t.Cleanup(func() {
		PlatformChecker, SIMDChecker, ProcfsChecker, PtraceChecker, ConfigDirChecker = origPlatform, origSIMD, origProcfs, origPtrace, origCfg
	})
	PlatformChecker = func() CheckResult { return platform }
	SIMDChecker = func() CheckResult { return simd }
	ProcfsChecker = func() CheckResult { return procfs }
	PtraceChecker = func() CheckResult { return ptrace }
	ConfigDirChecker = func() CheckResult { return cfgDir }
}

func TestDoctorJSONHealthyWhenAllOK(t *testing.T) {
	ok := func(name string) CheckResult { return CheckResult{Name: name, Status: "ok", Detail: "fine"} }
	withCheckers(t, ok("platform"), ok("simd"), ok("procfs"), ok("ptrace"), ok("config"))

	out, err := execRoot(t, "doctor", "--json")
	if err != nil {
		t.Fatalf("execRoot: %v", err)
	}
	var report DoctorReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("unmarshal: %v, out=%s", err, out)
	}
	if !report.Healthy {
		t.Fatalf("expected healthy report, got %+v", report)
	}
	if len(report.Checks) != 5 {
		t.Fatalf("expected 5 checks, got %d", len(report.Checks))
	}
}

func TestDoctorUnhealthyOnError(t *testing.T) {
	ok := func(name string) CheckResult { return CheckResult{Name: name, Status: "ok", Detail: "fine"} }
	withCheckers(t, CheckResult{Name: "platform", Status: "error", Detail: "boom"}, ok("simd"), ok("procfs"), ok("ptrace"), ok("config"))

	out, err := execRoot(t, "doctor", "--json")
	if err != nil {
		t.Fatalf("execRoot: %v", err)
	}
	var report DoctorReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.Healthy {
		t.Fatal("expected unhealthy report")
	}
}

func TestDoctorHealthyWithWarningsOnly(t *testing.T) {
	ok := func(name string) CheckResult { return CheckResult{Name: name, Status: "ok", Detail: "fine"} }
	withCheckers(t, ok("platform"), CheckResult{Name: "simd", Status: "warning", Detail: "no avx2"}, ok("procfs"), ok("ptrace"), ok("config"))

	out, err := execRoot(t, "doctor")
	if err != nil {
		t.Fatalf("execRoot: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("1 warning")) {
		t.Fatalf("expected warning summary in output, got %q", out)
	}
}

func TestDoctorHumanOutputListsEveryCheck(t *testing.T) {
	ok := func(name string) CheckResult { return CheckResult{Name: name, Status: "ok", Detail: "fine"} }
	withCheckers(t, ok("platform"), ok("simd"), ok("procfs"), ok("ptrace"), ok("config"))

	out, err := execRoot(t, "doctor")
	if err != nil {
		t.Fatalf("execRoot: %v", err)
	}
	for _, want := range []string{"platform", "simd", "procfs", "ptrace", "config", "Everything looks good."} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Fatalf("output missing %q: %s", want, out)
		}
	}
}
