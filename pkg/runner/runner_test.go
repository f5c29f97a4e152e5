package runner

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	var r Runner
	res, err := r.Run(context.Background(), 5*time.Second, "sh", "-c", "echo out; echo err 1>&2; exit 3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 || res.OK() {
		t.Fatalf("ExitCode = %d, OK = %v, want 3, false", res.ExitCode, res.OK())
	}
	if string(res.Stdout) != "out\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if string(res.Stderr) != "err\n" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestRunZeroExit(t *testing.T) {
	var r Runner
	res, err := r.Run(context.Background(), 5*time.Second, "true")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.OK() || res.ExitCode != 0 || res.TimedOut {
		t.Fatalf("Result = %+v, want clean zero exit", res)
	}
}

func TestRunTimeout(t *testing.T) {
	var r Runner
	start := time.Now()
	res, err := r.Run(context.Background(), 100*time.Millisecond, "sleep", "5")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut || res.ExitCode != ExitTimeout {
		t.Fatalf("Result = %+v, want timeout outcome", res)
	}
	if res.OK() {
		t.Fatal("OK() = true for timed out child")
	}
	if took := time.Since(start); took > 3*time.Second {
		t.Fatalf("child not killed at deadline, run took %v", took)
	}
}

func TestRunMissingBinary(t *testing.T) {
	var r Runner
	if _, err := r.Run(context.Background(), time.Second, "definitely-not-a-binary-7f3a"); err == nil {
		t.Fatal("Run succeeded for missing binary")
	}
}

func TestRunVerboseEcho(t *testing.T) {
	var sb strings.Builder
	r := Runner{Verbose: true, Out: &sb}
	if _, err := r.Run(context.Background(), 5*time.Second, "sh", "-c", "echo hello"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(sb.String(), "hello") {
		t.Errorf("verbose output = %q, want echoed stdout", sb.String())
	}

	sb.Reset()
	quiet := Runner{Out: &sb}
	if _, err := quiet.Run(context.Background(), 5*time.Second, "sh", "-c", "echo hello"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sb.Len() != 0 {
		t.Errorf("non-verbose runner wrote %q", sb.String())
	}
}

func TestCommandString(t *testing.T) {
	got := CommandString("dfu-util", "-a", "0", "-D", "fw.bin")
	if got != "dfu-util -a 0 -D fw.bin" {
		t.Errorf("CommandString = %q", got)
	}
}
