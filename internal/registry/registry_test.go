package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Registry {
	r := New()
	r.Record("gcc1", Descriptor{Name: "gcc", Version: "12.2.0", Path: "/opt/tools/compilers/gcc1", Group: "compilers", Triplet: "x86_64-pc-linux-gnu", Default: true})
	r.Record("cmake", Descriptor{Name: "cmake", Version: "3.28.1", Path: "/opt/tools/cmake"})
	r.SetVariable("BUILDER_CONAN_PROFILE_GCC1_RELEASE", "/tools/conan/profiles/cpp-builder-gcc1-release.profile")
	return r
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts", ".installation.json")
	require.NoError(t, sample().Save(path))

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded := Load(path)
	assert.Equal(t, sample().All(), loaded.All())
	assert.Equal(t, sample().Variables(), loaded.Variables())

	require.NoError(t, loaded.Save(path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestMarshalShape(t *testing.T) {
	r := New()
	r.Record("cmake", Descriptor{Name: "cmake", Version: "3.28.1", Path: "/opt/tools/cmake"})
	data, err := r.Marshal()
	require.NoError(t, err)
	want := `{
  "tools": {
    "components": {
      "cmake": {
        "name": "cmake",
        "version": "3.28.1",
        "path": "/opt/tools/cmake"
      }
    }
  }
}
`
	assert.Equal(t, want, string(data))

	empty, err := New().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"components": {}`)
}

func TestLoadTolerant(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"empty":     "",
		"blank":     "  \n",
		"garbled":   "{\"tools\": [",
		"wrongtype": `{"tools": {"components": []}}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			r := Load(path)
			require.NotNil(t, r)
			assert.Zero(t, r.Len())
		})
	}

	r := Load(filepath.Join(dir, "missing.json"))
	assert.Zero(t, r.Len())
}

func TestLoadForeignRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	content := `{"tools": {"components": {"gcc1": {"name": "gcc", "version": "12.2.0", "path": "/p", "triplet": "x86_64-linux-gnu"}}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r := Load(path)
	d, ok := r.Get("gcc1")
	require.True(t, ok)
	assert.Equal(t, Descriptor{Name: "gcc", Version: "12.2.0", Path: "/p", Triplet: "x86_64-linux-gnu"}, d)
	assert.Empty(t, r.Variables())
}

func TestRecordResetAndCopies(t *testing.T) {
	r := sample()
	assert.Equal(t, []string{"cmake", "gcc1"}, r.Keys())

	r.Record("cmake", Descriptor{Name: "cmake", Version: "3.29.0", Path: "/opt/tools/cmake"})
	d, _ := r.Get("cmake")
	assert.Equal(t, "3.29.0", d.Version)

	all := r.All()
	delete(all, "cmake")
	assert.Equal(t, 2, r.Len())

	r.Reset()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Variables())
}
