package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"modpack/internal/core/config"
	"modpack/internal/core/errors"
	"modpack/internal/engine/archive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type workspace struct {
	dir         string
	core        string
	collections string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:         dir,
		core:        filepath.Join(dir, "module_utils"),
		collections: filepath.Join(dir, "collections"),
	}
	ws.write(t, "module_utils/basic.py", "import ansible.module_utils.common\n")
	ws.write(t, "module_utils/common/__init__.py", "")
	require.NoError(t, os.MkdirAll(ws.collections, 0o755))
	return ws
}

func (ws workspace) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(ws.dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (ws workspace) config(history bool) *config.Config {
	return &config.Config{
		Version: 1,
		Workers: 2,
		Core:    config.Core{SearchPaths: []string{ws.core}},
		Collections: config.Collections{
			Paths:        []string{ws.collections},
			CacheEntries: 64,
		},
		Archive: config.Archive{
			Compression: archive.CompressionDeflate,
			Version:     "2.17.0",
			Author:      "Ansible, Inc.",
			DateTime:    "2024-01-02 03:04:05",
		},
		History: config.History{
			Enabled: history,
			Path:    filepath.Join(ws.dir, ".modpack", "history.db"),
		},
		Watch: config.Watch{Debounce: 50 * time.Millisecond},
	}
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func entryNames(t *testing.T, path string) []string {
	t.Helper()
	infos, err := archive.Inspect(path)
	require.NoError(t, err)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names
}

func TestAssemble_WritesArchiveAndHistory(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "module_utils/alpha.py", "X = 1\n")
	script := ws.write(t, "library/ping.py", "from ansible.module_utils.alpha import X\n")

	a := newApp(t, ws.config(true))
	out := filepath.Join(ws.dir, "out", "ping.zip")
	asm, err := a.Assemble(context.Background(), Request{Script: script, Output: out})
	require.NoError(t, err)

	assert.Equal(t, "ansible.modules.ping", asm.Entry)
	assert.NotEmpty(t, asm.ID)
	assert.Equal(t, []string{"ansible.module_utils.alpha.X"}, asm.AttributeRefs)
	assert.Equal(t, []string{
		"ansible/__init__.py",
		"ansible/module_utils/__init__.py",
		"ansible/module_utils/alpha.py",
		"ansible/module_utils/basic.py",
		"ansible/module_utils/common/__init__.py",
	}, entryNames(t, out))

	records, err := a.History().List("ansible.modules.ping", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, asm.Summary.Digest, records[0].Digest)
	assert.Equal(t, 5, records[0].ModuleCount)
	assert.Equal(t, out, records[0].ArchivePath)
}

func TestAssemble_IsDeterministic(t *testing.T) {
	ws := newWorkspace(t)
	script := ws.write(t, "library/ping.py", "import ansible.module_utils.basic\n")
	a := newApp(t, ws.config(false))

	first, err := a.Assemble(context.Background(), Request{Script: script, Output: filepath.Join(ws.dir, "a.zip")})
	require.NoError(t, err)
	second, err := a.Assemble(context.Background(), Request{Script: script, Output: filepath.Join(ws.dir, "b.zip")})
	require.NoError(t, err)

	assert.Equal(t, first.Summary.Digest, second.Summary.Digest)
	a1, err := os.ReadFile(first.Output)
	require.NoError(t, err)
	b1, err := os.ReadFile(second.Output)
	require.NoError(t, err)
	assert.Equal(t, a1, b1)
}

func TestAssemble_DateTimeOverride(t *testing.T) {
	ws := newWorkspace(t)
	script := ws.write(t, "library/ping.py", "")
	a := newApp(t, ws.config(false))

	dt := archive.DateTime{Year: 2020, Month: 6, Day: 1, Hour: 12}
	asm, err := a.Assemble(context.Background(), Request{Script: script, Output: filepath.Join(ws.dir, "p.zip"), DateTime: &dt})
	require.NoError(t, err)
	assert.Equal(t, dt, asm.Summary.DateTime)

	infos, err := archive.Inspect(asm.Output)
	require.NoError(t, err)
	for _, info := range infos {
		assert.Equal(t, dt.Time(), info.Modified.UTC(), info.Name)
	}
}

func TestAssemble_IncludeEntry(t *testing.T) {
	ws := newWorkspace(t)
	script := ws.write(t, "library/ping.py", "print('hi')\n")
	cfg := ws.config(false)
	cfg.Archive.IncludeEntry = true
	a := newApp(t, cfg)

	asm, err := a.Assemble(context.Background(), Request{Script: script, Output: filepath.Join(ws.dir, "p.zip")})
	require.NoError(t, err)
	names := entryNames(t, asm.Output)
	assert.Equal(t, "ansible/modules/ping.py", names[len(names)-1])
}

func TestAssemble_CollectionModule(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "collections/ansible_collections/acme/net/plugins/module_utils/api.py", "import ansible.module_utils.basic\n")
	script := ws.write(t, "collections/ansible_collections/acme/net/plugins/modules/probe.py",
		"from ansible_collections.acme.net.plugins.module_utils.api import Client\n")
	a := newApp(t, ws.config(false))

	asm, err := a.Assemble(context.Background(), Request{Script: script, Output: filepath.Join(ws.dir, "probe.zip")})
	require.NoError(t, err)
	assert.Equal(t, "ansible_collections.acme.net.plugins.modules.probe", asm.Entry)
	assert.Contains(t, entryNames(t, asm.Output), "ansible_collections/acme/net/plugins/module_utils/api.py")
	assert.Contains(t, entryNames(t, asm.Output), "ansible_collections/__init__.py")
}

func TestAssemble_MissingModuleFails(t *testing.T) {
	ws := newWorkspace(t)
	script := ws.write(t, "library/broken.py", "import ansible.module_utils.gamma\n")
	a := newApp(t, ws.config(false))

	out := filepath.Join(ws.dir, "broken.zip")
	_, err := a.Assemble(context.Background(), Request{Script: script, Output: out})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	assert.NoFileExists(t, out)

	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "1 entries, 1 failing", status.Components["assemblies"])
}

func TestAssemble_RequiresOutput(t *testing.T) {
	ws := newWorkspace(t)
	script := ws.write(t, "library/ping.py", "")
	a := newApp(t, ws.config(false))

	_, err := a.Assemble(context.Background(), Request{Script: script})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestAssembleBatch(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "module_utils/alpha.py", "")
	one := ws.write(t, "library/one.py", "import ansible.module_utils.alpha\n")
	two := ws.write(t, "library/two.py", "import ansible.module_utils.basic\n")
	a := newApp(t, ws.config(false))

	outDir := filepath.Join(ws.dir, "dist")
	results, err := a.AssembleBatch(context.Background(), []Request{
		{Script: one, Output: OutputPath(outDir, one)},
		{Script: two, Output: OutputPath(outDir, two)},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ansible.modules.one", results[0].Entry)
	assert.Equal(t, "ansible.modules.two", results[1].Entry)
	assert.FileExists(t, filepath.Join(outDir, "one.zip"))
	assert.FileExists(t, filepath.Join(outDir, "two.zip"))
}

func TestAssembleBatch_RejectsSharedOutput(t *testing.T) {
	ws := newWorkspace(t)
	one := ws.write(t, "a/ping.py", "")
	two := ws.write(t, "b/ping.py", "")
	a := newApp(t, ws.config(false))

	outDir := filepath.Join(ws.dir, "dist")
	_, err := a.AssembleBatch(context.Background(), []Request{
		{Script: one, Output: OutputPath(outDir, one)},
		{Script: two, Output: OutputPath(outDir, two)},
	})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestAssembleBatch_PropagatesFailure(t *testing.T) {
	ws := newWorkspace(t)
	good := ws.write(t, "library/good.py", "")
	bad := ws.write(t, "library/bad.py", "import ansible.module_utils.gamma\n")
	a := newApp(t, ws.config(false))

	_, err := a.AssembleBatch(context.Background(), []Request{
		{Script: good, Output: filepath.Join(ws.dir, "good.zip")},
		{Script: bad, Output: filepath.Join(ws.dir, "bad.zip")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.py")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestDeriveFQN(t *testing.T) {
	cases := map[string]string{
		"library/ping.py":    "ansible.modules.ping",
		"/abs/path/setup.py": "ansible.modules.setup",
		"ping":               "ansible.modules.ping",
		"x/ansible_collections/acme/net/plugins/modules/probe.py": "ansible_collections.acme.net.plugins.modules.probe",
		"ansible_collections/acme/probe.py":                       "ansible.modules.probe",
	}
	for in, want := range cases {
		assert.Equal(t, want, DeriveFQN(in), in)
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("dist", "ping.zip"), OutputPath("dist", "library/ping.py"))
}

func TestManifest(t *testing.T) {
	ws := newWorkspace(t)
	script := ws.write(t, "library/ping.py", "try:\n    import ansible.module_utils.beta\nexcept ImportError:\n    pass\n")
	a := newApp(t, ws.config(false))

	asm, err := a.Assemble(context.Background(), Request{Script: script, Output: filepath.Join(ws.dir, "p.zip")})
	require.NoError(t, err)

	path := filepath.Join(ws.dir, "p.yml")
	require.NoError(t, WriteManifest(path, asm))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, "ansible.modules.ping", m.Entry)
	assert.Equal(t, asm.Summary.Digest, m.Digest)
	assert.Equal(t, "2024-01-02 03:04:05", m.DateTime)
	assert.Equal(t, []string{"ansible.module_utils.beta"}, m.DroppedOptional)
	require.Len(t, m.Modules, 4)
	assert.Equal(t, ManifestModule{Name: "ansible", Path: "ansible/__init__.py", Package: true}, m.Modules[0])
}

func TestHistoryTrend(t *testing.T) {
	ws := newWorkspace(t)
	script := ws.write(t, "library/ping.py", "")
	a := newApp(t, ws.config(true))
	ctx := context.Background()

	_, err := a.Assemble(ctx, Request{Script: script, Output: filepath.Join(ws.dir, "p.zip")})
	require.NoError(t, err)
	ws.write(t, "module_utils/alpha.py", "")
	ws.write(t, "library/ping.py", "import ansible.module_utils.alpha\n")
	_, err = a.Assemble(ctx, Request{Script: script, Output: filepath.Join(ws.dir, "p.zip")})
	require.NoError(t, err)

	result, err := a.HistoryTrend(ctx, HistoryTrendRequest{Entry: "ansible.modules.ping"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsEvaluated)
	require.NotNil(t, result.Report)
	require.Len(t, result.Report.Points, 2)
	assert.Equal(t, 1, result.Report.Points[1].DeltaModules)
	assert.True(t, result.Report.Points[1].DigestChanged)
}

func TestHistoryTrend_Disabled(t *testing.T) {
	ws := newWorkspace(t)
	a := newApp(t, ws.config(false))
	_, err := a.HistoryTrend(context.Background(), HistoryTrendRequest{})
	assert.Error(t, err)
}

func TestHealth_Up(t *testing.T) {
	ws := newWorkspace(t)
	a := newApp(t, ws.config(true))
	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok", status.Components["extractor"])
	assert.Equal(t, "ok", status.Components["history"])
	assert.Equal(t, "ok (1)", status.Components["search_paths"])
}

func TestWatchRoots(t *testing.T) {
	ws := newWorkspace(t)
	cfg := ws.config(false)
	roots := WatchRoots(cfg, []Request{
		{Script: filepath.Join(ws.dir, "library", "a.py")},
		{Script: filepath.Join(ws.dir, "library", "b.py")},
	})
	assert.Equal(t, []string{ws.core, ws.collections, filepath.Join(ws.dir, "library")}, roots)
}

func TestWatch_ReassemblesOnChange(t *testing.T) {
	ws := newWorkspace(t)
	script := ws.write(t, "library/ping.py", "")
	a := newApp(t, ws.config(false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rounds := make(chan []*Assembly, 4)
	done := make(chan error, 1)
	reqs := []Request{{Script: script, Output: filepath.Join(ws.dir, "p.zip")}}
	go func() {
		done <- a.Watch(ctx, reqs, "", func(results []*Assembly, err error) {
			if err == nil {
				rounds <- results
			}
		})
	}()

	// Give the watcher time to register its directories.
	time.Sleep(200 * time.Millisecond)
	ws.write(t, "module_utils/alpha.py", "")
	ws.write(t, "library/ping.py", "import ansible.module_utils.alpha\n")

	deadline := time.After(5 * time.Second)
	for found := false; !found; {
		select {
		case results := <-rounds:
			require.Len(t, results, 1)
			for _, n := range entryNames(t, results[0].Output) {
				found = found || strings.HasSuffix(n, "alpha.py")
			}
		case <-deadline:
			t.Fatal("no re-assembly picked up the change")
		}
	}

	cancel()
	require.NoError(t, <-done)
}
