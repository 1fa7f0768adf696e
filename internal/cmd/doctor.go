package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/relkin/memscan/internal/config"
	"github.com/relkin/memscan/internal/output"
	"github.com/spf13/cobra"
	"golang.org/x/sys/cpu"
)

func addDoctorCommand(parent *cobra.Command) {
	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check environment health",
		Long:  "Run diagnostic checks on the host's ability to attach to and scan other processes, and report the results.",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
	parent.AddCommand(doctorCmd)
}

// CheckResult holds the result of a single doctor check.
type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warning", "error"
	Detail string `json:"detail"`
}

// DoctorReport holds the complete doctor output.
type DoctorReport struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

// Testable check functions — replaceable in unit tests.
var (
	PlatformChecker  = checkPlatform
	SIMDChecker      = checkSIMD
	ProcfsChecker    = checkProcfs
	PtraceChecker    = checkPtraceScope
	ConfigDirChecker = checkConfigDir
)

func runDoctor(cmd *cobra.Command, args []string) error {
	config.SetConfigDir(ConfigDir)

	checks := []CheckResult{
		PlatformChecker(),
		SIMDChecker(),
		ProcfsChecker(),
		PtraceChecker(),
		ConfigDirChecker(),
	}

	healthy := true
	for _, c := range checks {
		if c.Status == "error" {
			healthy = false
			break
		}
	}

	report := DoctorReport{Healthy: healthy, Checks: checks}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), report)
	}

	if output.IsQuiet() && healthy {
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "memscan doctor")
	fmt.Fprintln(cmd.OutOrStdout())

	var warnings, errors int
	for _, c := range checks {
		symbol := "✓"
		switch c.Status {
		case "warning":
			symbol = "⚠"
			warnings++
		case "error":
			symbol = "✗"
			errors++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %-10s %s\n", symbol, c.Name, c.Detail)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	switch {
	case errors > 0:
		fmt.Fprintf(cmd.OutOrStdout(), "Problems found (%s).\n", pluralize(errors, "error"))
	case warnings > 0:
		fmt.Fprintf(cmd.OutOrStdout(), "Everything looks good (%s).\n", pluralize(warnings, "warning"))
	default:
		fmt.Fprintln(cmd.OutOrStdout(), "Everything looks good.")
	}
	return nil
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func checkPlatform() CheckResult {
	if runtime.GOOS != "linux" {
		return CheckResult{
			Name:   "platform",
			Status: "warning",
			Detail: fmt.Sprintf("%s/%s — only Linux targets support full memory scanning", runtime.GOOS, runtime.GOARCH),
		}
	}
	return CheckResult{Name: "platform", Status: "ok", Detail: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)}
}

func checkSIMD() CheckResult {
	if cpu.X86.HasAVX2 {
		return CheckResult{Name: "simd", Status: "ok", Detail: "AVX2 available, wide scan path enabled"}
	}
	return CheckResult{Name: "simd", Status: "warning", Detail: "AVX2 not available, falling back to the scalar scan path"}
}

func checkProcfs() CheckResult {
	if runtime.GOOS != "linux" {
		return CheckResult{Name: "procfs", Status: "warning", Detail: "not applicable on " + runtime.GOOS}
	}
	if _, err := os.Stat("/proc/self/maps"); err != nil {
		return CheckResult{Name: "procfs", Status: "error", Detail: fmt.Sprintf("/proc unavailable: %s", err)}
	}
	return CheckResult{Name: "procfs", Status: "ok", Detail: "/proc is mounted and readable"}
}

func checkPtraceScope() CheckResult {
	if runtime.GOOS != "linux" {
		return CheckResult{Name: "ptrace", Status: "warning", Detail: "not applicable on " + runtime.GOOS}
	}
	data, err := os.ReadFile("/proc/sys/kernel/yama/ptrace_scope")
	if err != nil {
		// Absent on kernels without Yama; ptrace is unrestricted.
		return CheckResult{Name: "ptrace", Status: "ok", Detail: "yama LSM not present, ptrace unrestricted"}
	}
	scope := strings.TrimSpace(string(data))
	n, err := strconv.Atoi(scope)
	if err != nil {
		return CheckResult{Name: "ptrace", Status: "warning", Detail: fmt.Sprintf("unexpected ptrace_scope value %q", scope)}
	}
	switch n {
	case 0:
		return CheckResult{Name: "ptrace", Status: "ok", Detail: "ptrace_scope=0, any process may attach"}
	case 1:
		return CheckResult{Name: "ptrace", Status: "warning", Detail: "ptrace_scope=1, attach is restricted to child processes unless run as root"}
	default:
		return CheckResult{Name: "ptrace", Status: "error", Detail: fmt.Sprintf("ptrace_scope=%d, attach requires CAP_SYS_PTRACE or root", n)}
	}
}

func checkConfigDir() CheckResult {
	if err := config.EnsureDir(); err != nil {
		return CheckResult{Name: "config", Status: "error", Detail: fmt.Sprintf("cannot create %s: %s", config.Home(), err)}
	}
	return CheckResult{Name: "config", Status: "ok", Detail: config.Home()}
}
