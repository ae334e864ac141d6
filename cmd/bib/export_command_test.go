//go:build cgo

package main

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestExportRunsAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	input := env.writeFile(t, "payloads.json", twoPayloads)
	dbPath := filepath.Join(env.baseDir, "export.db")

	expectCode(t, env.run(t, "", "format", "-i", input, "-o", env.docPath, "-t", "Gap1"), exitOK)

	res := env.run(t, "", "export", env.docPath, "--db", dbPath, "--runs")
	expectCode(t, res, exitOK)
	if res.stdout != "No exports.\n" {
		t.Fatalf("unexpected runs output: %q", res.stdout)
	}

	res = env.run(t, "", "export", env.docPath, "--db", dbPath)
	expectCode(t, res, exitOK)
	m := regexp.MustCompile(`\(export ([0-9a-f-]{36})\)`).FindStringSubmatch(res.stdout)
	if m == nil {
		t.Fatalf("export id missing from %q", res.stdout)
	}

	res = env.run(t, "", "export", env.docPath, "--db", dbPath, "--runs")
	expectCode(t, res, exitOK)
	if !strings.Contains(res.stdout, m[1]) {
		t.Fatalf("runs listing missing %s:\n%s", m[1], res.stdout)
	}

	res = env.run(t, "", "export", env.docPath, "--db", dbPath, "--show", m[1])
	expectCode(t, res, exitOK)
	if !strings.HasPrefix(res.stdout, "1. [○] Ada Lovelace. (2021). **Paper A**. *x.org*\n") || !strings.Contains(res.stdout, "https://y.org/b") {
		t.Fatalf("unexpected snapshot listing:\n%s", res.stdout)
	}

	expectCode(t, env.run(t, "", "export", env.docPath, "--db", dbPath, "--runs", "--show", m[1]), exitUsage)
}
