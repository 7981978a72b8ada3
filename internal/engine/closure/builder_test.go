package closure

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modpack/internal/core/errors"
	"modpack/internal/engine/locator"
	"modpack/internal/engine/module"
	"modpack/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	core        string
	collections string
}

func newFixture(t *testing.T, files map[string]string) fixture {
	t.Helper()
	f := fixture{core: t.TempDir(), collections: t.TempDir()}
	files["ansible/module_utils/basic.py"] = "import ansible.module_utils.common\n"
	files["ansible/module_utils/common/__init__.py"] = ""

	for rel, content := range files {
		path := filepath.Join(f.collections, filepath.FromSlash(rel))
		if coreRel, ok := strings.CutPrefix(rel, "ansible/module_utils/"); ok {
			path = filepath.Join(f.core, filepath.FromSlash(coreRel))
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return f
}

func (f fixture) builder(t *testing.T, builtin *locator.Routing) *Builder {
	t.Helper()
	extractor, err := parser.NewExtractor(parser.NewGrammarLoader())
	require.NoError(t, err)

	index := locator.NewFSIndex([]string{f.collections})
	router := locator.NewRouter(builtin, index)
	return NewBuilder(extractor,
		locator.NewCoreLocator([]string{f.core}, router),
		locator.NewCollectionLocator(index, router),
		nil,
	)
}

func build(t *testing.T, b *Builder, script string) (*Result, error) {
	t.Helper()
	return b.Build(context.Background(), "ansible.modules.test_module", []byte(script))
}

func assertPackageChain(t *testing.T, cache *module.Cache) {
	t.Helper()
	for _, r := range cache.Entries() {
		for _, parent := range r.Name.Ancestors() {
			assert.True(t, cache.Has(parent), "%s is missing ancestor %s", r.Name, parent)
		}
	}
}

func TestBuild_OptionalMissingIsDropped(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/alpha.py": "X = 1\n",
	})
	script := `
import ansible.module_utils.alpha
if True:
    import ansible.module_utils.beta
`
	res, err := build(t, f.builder(t, nil), script)
	require.NoError(t, err)

	assert.True(t, res.Cache.Has(module.Parse("ansible.module_utils.alpha")))
	assert.False(t, res.Cache.Has(module.Parse("ansible.module_utils.beta")))
	assert.Contains(t, res.DroppedOptional, "ansible.module_utils.beta")
	assertPackageChain(t, res.Cache)
}

func TestBuild_RequiredMissingFails(t *testing.T) {
	f := newFixture(t, map[string]string{})
	_, err := build(t, f.builder(t, nil), "import ansible.module_utils.gamma\n")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	assert.Contains(t, err.Error(), "ansible.module_utils.gamma")

	candidates, ok := errors.ContextValue(err, errors.CtxCandidates)
	require.True(t, ok)
	assert.Equal(t, "ansible.module_utils.gamma", candidates)

	requester, ok := errors.ContextValue(err, errors.CtxRequester)
	require.True(t, ok)
	assert.Equal(t, "ansible.modules.test_module", requester)
}

func TestBuild_DeepMissingNameFallsBackToParentPackage(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/util/__init__.py": "",
	})
	res, err := build(t, f.builder(t, nil), "import ansible.module_utils.util.gamma\n")
	require.NoError(t, err)

	assert.True(t, res.Cache.Has(module.Parse("ansible.module_utils.util")))
	assert.False(t, res.Cache.Has(module.Parse("ansible.module_utils.util.gamma")))
	assert.Equal(t, []string{"ansible.module_utils.util.gamma"}, res.AttributeRefs)
}

func TestBuild_OptionalParentWithoutInitIsStubbed(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/ns/mod.py": "VALUE = 1\n",
	})
	script := `
try:
    import ansible.module_utils.ns.mod
except ImportError:
    pass
`
	res, err := build(t, f.builder(t, nil), script)
	require.NoError(t, err)

	assert.True(t, res.Cache.Has(module.Parse("ansible.module_utils.ns.mod")))
	parent, ok := res.Cache.Get(module.Parse("ansible.module_utils.ns"))
	require.True(t, ok)
	assert.True(t, parent.IsPackage)
	assert.Empty(t, parent.Source)
	assert.Equal(t, "ansible/module_utils/ns/__init__.py", parent.ArchivePath)
	assert.NotContains(t, res.DroppedOptional, "ansible.module_utils.ns")
	assertPackageChain(t, res.Cache)
}

func TestBuild_RequiredParentWithoutInitFails(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/ns/mod.py": "VALUE = 1\n",
	})
	_, err := build(t, f.builder(t, nil), "import ansible.module_utils.ns.mod\n")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	candidates, _ := errors.ContextValue(err, errors.CtxCandidates)
	assert.Equal(t, "ansible.module_utils.ns", candidates)
}

func TestBuild_MissingFromImportListsBothCandidates(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/util/__init__.py": "",
	})
	_, err := build(t, f.builder(t, nil), "from ansible.module_utils.util.none import thing\n")
	require.Error(t, err)
	candidates, _ := errors.ContextValue(err, errors.CtxCandidates)
	assert.Equal(t, "ansible.module_utils.util.none.thing, ansible.module_utils.util.none", candidates)
}

func TestBuild_OptionalityFollowsNesting(t *testing.T) {
	f := newFixture(t, map[string]string{})
	b := f.builder(t, nil)

	_, err := build(t, b, "def main():\n    import ansible.module_utils.missing\n")
	require.NoError(t, err)

	_, err = build(t, b, "import ansible.module_utils.missing\n")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestBuild_AmbiguityFallback(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/a/__init__.py": "",
		"ansible/module_utils/a/b.py":        "def c():\n    return 1\n",
	})
	res, err := build(t, f.builder(t, nil), "from ansible.module_utils.a.b import c\n")
	require.NoError(t, err)

	assert.True(t, res.Cache.Has(module.Parse("ansible.module_utils.a.b")))
	assert.False(t, res.Cache.Has(module.Parse("ansible.module_utils.a.b.c")))
	assert.Equal(t, []string{"ansible.module_utils.a.b.c"}, res.AttributeRefs)
}

func TestBuild_MandatoryBootstrap(t *testing.T) {
	f := newFixture(t, map[string]string{})
	res, err := build(t, f.builder(t, nil), "print('no imports')\n")
	require.NoError(t, err)

	assert.True(t, res.Cache.Has(module.Bootstrap))
	assert.True(t, res.Cache.Has(module.Parse("ansible.module_utils.common")))
	assert.Equal(t, []string{
		"ansible",
		"ansible.module_utils",
		"ansible.module_utils.basic",
		"ansible.module_utils.common",
	}, res.Cache.Names())
}

func TestBuild_MissingBootstrapFails(t *testing.T) {
	extractor, err := parser.NewExtractor(parser.NewGrammarLoader())
	require.NoError(t, err)
	b := NewBuilder(extractor, locator.NewCoreLocator([]string{t.TempDir()}, nil), locator.NewCollectionLocator(nil, nil), nil)

	_, err = b.Build(context.Background(), "ansible.modules.x", []byte("import os\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestBuild_TransitiveClosureAndIdempotentCaching(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/x.py":          "import ansible.module_utils.y\nfrom ansible.module_utils import z\n",
		"ansible/module_utils/y.py":          "import ansible.module_utils.x\nimport ansible.module_utils.z\n",
		"ansible/module_utils/z/__init__.py": "from . import leaf\n",
		"ansible/module_utils/z/leaf.py":     "from .. import y\n",
	})
	res, err := build(t, f.builder(t, nil), "import ansible.module_utils.x\nimport ansible.module_utils.x as again\n")
	require.NoError(t, err)

	for _, name := range []string{
		"ansible.module_utils.x",
		"ansible.module_utils.y",
		"ansible.module_utils.z",
		"ansible.module_utils.z.leaf",
	} {
		assert.True(t, res.Cache.Has(module.Parse(name)), name)
	}

	seen := map[string]int{}
	for _, r := range res.Cache.Entries() {
		seen[r.ArchivePath]++
	}
	for path, n := range seen {
		assert.Equal(t, 1, n, path)
	}
	assertPackageChain(t, res.Cache)
}

func TestBuild_CollectionStubsAndChain(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible_collections/ns/coll/__init__.py":                          "raise RuntimeError('never shipped')\n",
		"ansible_collections/ns/coll/plugins/module_utils/helper.py":       "from .sub import thing\n",
		"ansible_collections/ns/coll/plugins/module_utils/sub/__init__.py": "",
		"ansible_collections/ns/coll/plugins/module_utils/sub/thing.py":    "",
	})
	res, err := build(t, f.builder(t, nil), "from ansible_collections.ns.coll.plugins.module_utils.helper import run\n")
	require.NoError(t, err)

	helper, ok := res.Cache.Get(module.Parse("ansible_collections.ns.coll.plugins.module_utils.helper"))
	require.True(t, ok)
	assert.Equal(t, "ansible_collections/ns/coll/plugins/module_utils/helper.py", helper.ArchivePath)

	coll, ok := res.Cache.Get(module.Parse("ansible_collections.ns.coll"))
	require.True(t, ok)
	assert.Empty(t, coll.Source)
	assert.True(t, coll.IsPackage)

	assert.True(t, res.Cache.Has(module.Parse("ansible_collections.ns.coll.plugins.module_utils.sub.thing")))
	assertPackageChain(t, res.Cache)
}

func TestBuild_UnknownRootIsIgnored(t *testing.T) {
	f := newFixture(t, map[string]string{})
	res, err := build(t, f.builder(t, nil), "from ansible.module_utils.six.moves import _six\n")
	require.NoError(t, err)
	assert.Contains(t, res.Ignored, "_six")
}

func TestBuild_SixFolds(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/six/__init__.py": "",
	})
	res, err := build(t, f.builder(t, nil), "from ansible.module_utils.six.moves.urllib.parse import urlparse\n")
	require.NoError(t, err)
	assert.True(t, res.Cache.Has(module.SixShim))
	assert.False(t, res.Cache.Has(module.Parse("ansible.module_utils.six.moves")))
}

func TestBuild_ParseErrorAborts(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/broken.py": "def oops(:\n",
	})
	_, err := build(t, f.builder(t, nil), "import ansible.module_utils.broken\n")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeParseError))
	assert.Contains(t, err.Error(), "ansible.module_utils.broken")
}

func TestBuild_RedirectPullsTargetAndStubsParents(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible_collections/ns/coll/plugins/module_utils/moved.py": "VALUE = 1\n",
	})
	builtin := &locator.Routing{ModuleUtils: map[string]locator.RoutingEntry{
		"old.moved": {Redirect: "ns.coll.moved"},
	}}
	res, err := build(t, f.builder(t, builtin), "import ansible.module_utils.old.moved\n")
	require.NoError(t, err)

	shim, ok := res.Cache.Get(module.Parse("ansible.module_utils.old.moved"))
	require.True(t, ok)
	assert.True(t, shim.Redirected)

	stub, ok := res.Cache.Get(module.Parse("ansible.module_utils.old"))
	require.True(t, ok)
	assert.True(t, stub.IsPackage)
	assert.Empty(t, stub.Source)

	assert.True(t, res.Cache.Has(module.Parse("ansible_collections.ns.coll.plugins.module_utils.moved")))
	assertPackageChain(t, res.Cache)
}

func TestBuild_OptionalTombstoneIsDropped(t *testing.T) {
	f := newFixture(t, map[string]string{})
	builtin := &locator.Routing{ModuleUtils: map[string]locator.RoutingEntry{
		"legacy": {Tombstone: &locator.RoutingNotice{WarningText: "gone"}},
	}}
	b := f.builder(t, builtin)

	res, err := build(t, b, "try:\n    import ansible.module_utils.legacy\nexcept ImportError:\n    pass\n")
	require.NoError(t, err)
	assert.Contains(t, res.DroppedOptional, "ansible.module_utils.legacy")

	_, err = build(t, b, "import ansible.module_utils.legacy\n")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeRemoved))
}

func TestBuild_Deterministic(t *testing.T) {
	f := newFixture(t, map[string]string{
		"ansible/module_utils/b.py": "import ansible.module_utils.a\n",
		"ansible/module_utils/a.py": "",
		"ansible/module_utils/c.py": "import ansible.module_utils.b\n",
	})
	b := f.builder(t, nil)
	script := "import ansible.module_utils.c\nimport ansible.module_utils.a\n"

	first, err := build(t, b, script)
	require.NoError(t, err)
	second, err := build(t, b, script)
	require.NoError(t, err)
	assert.Equal(t, first.Cache.Names(), second.Cache.Names())
}

func TestBuild_EmptyEntryName(t *testing.T) {
	f := newFixture(t, map[string]string{})
	_, err := f.builder(t, nil).Build(context.Background(), "", []byte(""))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}
