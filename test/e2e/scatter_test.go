//go:build e2e

// Package e2e runs the real scatter binaries as separate OS processes.
//
// The binaries are built into a temp dir unless E2E_SCATTER_BIN and
// E2E_SCATTERRUN_BIN point at prebuilt ones.
//
// Run with:
//
//	go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Setup
// ---------------------------------------------------------------------------

type binaries struct {
	Scatter    string
	ScatterRun string
}

func buildBinaries(t *testing.T) binaries {
	t.Helper()
	bins := binaries{
		Scatter:    os.Getenv("E2E_SCATTER_BIN"),
		ScatterRun: os.Getenv("E2E_SCATTERRUN_BIN"),
	}
	out := t.TempDir()
	for pkg, path := range map[string]*string{"scatter": &bins.Scatter, "scatterrun": &bins.ScatterRun} {
		if *path != "" {
			continue
		}
		*path = filepath.Join(out, pkg)
		cmd := exec.Command("go", "build", "-o", *path, "../../cmd/"+pkg)
		if msg, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("building %s: %v\n%s", pkg, err, msg)
		}
	}
	return bins
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	docs := map[string]string{
		"A": "cat dog cat",
		"B": "dog dog dog",
		"C": "bird",
	}
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

func expectedDog(dir string) string {
	return "Processing query = dog\n" +
		"Result =\n" +
		"1 | " + filepath.Join(dir, "B") + " | score=1\n" +
		"2 | " + filepath.Join(dir, "A") + " | score=0.333333\n" +
		"3 | " + filepath.Join(dir, "C") + " | score=0\n" +
		"\n"
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestLocalGroup runs the whole group inside one scatter process.
func TestLocalGroup(t *testing.T) {
	bins := buildBinaries(t)
	dir := writeCorpus(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, bins.Scatter, "-local", "-procs", "3", dir)
	cmd.Stdin = strings.NewReader("dog\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("scatter: %v\n%s", err, stderr.String())
	}
	if stdout.String() != expectedDog(dir) {
		t.Fatalf("stdout:\n%s\nwant:\n%s", stdout.String(), expectedDog(dir))
	}
}

// TestProcessGroup launches one OS process per rank through scatterrun.
func TestProcessGroup(t *testing.T) {
	bins := buildBinaries(t)
	dir := writeCorpus(t)

	for _, procs := range []int{2, 4} {
		t.Run(fmt.Sprintf("procs_%d", procs), func(t *testing.T) {
			addr := freeAddr(t)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			cmd := exec.CommandContext(ctx, bins.ScatterRun,
				"-procs", strconv.Itoa(procs), "-bin", bins.Scatter, "--", dir)
			cmd.Env = append(os.Environ(),
				"SCATTER_LISTEN_ADDR="+addr,
				"SCATTER_COORDINATOR_ADDR="+addr,
			)
			cmd.Stdin = strings.NewReader("dog\n")
			var stdout, stderr bytes.Buffer
			cmd.Stdout, cmd.Stderr = &stdout, &stderr
			if err := cmd.Run(); err != nil {
				t.Fatalf("scatterrun: %v\n%s", err, stderr.String())
			}
			if stdout.String() != expectedDog(dir) {
				t.Fatalf("stdout:\n%s\nwant:\n%s", stdout.String(), expectedDog(dir))
			}
		})
	}
}

// TestUsageErrors checks argument validation exit codes.
func TestUsageErrors(t *testing.T) {
	bins := buildBinaries(t)
	dir := writeCorpus(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing corpus", []string{"-local"}, 2},
		{"single process", []string{"-local", "-procs", "1", dir}, 2},
		{"bad limit", []string{"-local", dir, "many"}, 2},
		{"corpus not a directory", []string{"-local", filepath.Join(dir, "A")}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(bins.Scatter, tt.args...)
			cmd.Stdin = strings.NewReader("")
			err := cmd.Run()
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				t.Fatalf("expected exit error, got %v", err)
			}
			if exitErr.ExitCode() != tt.code {
				t.Errorf("exit code %d, want %d", exitErr.ExitCode(), tt.code)
			}
		})
	}
}
