package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRendererInline(t *testing.T) {
	renderer := NewRenderer()

	tests := []struct {
		name     string
		template string
		data     any
		want     string
	}{
		{
			name:     "range over list",
			template: `{{ range . }}{{ .id }} {{ .status | upper }}{{ "\n" }}{{ end }}`,
			data:     []any{map[string]any{"id": "p1", "status": "draft"}, map[string]any{"id": "p2", "status": "published"}},
			want:     "p1 DRAFT\np2 PUBLISHED\n",
		},
		{
			name:     "missing key renders zero",
			template: `[{{ .missing }}]`,
			data:     map[string]any{},
			want:     "[<no value>]",
		},
		{
			name:     "sprig json helpers",
			template: `{{ toJson . }}`,
			data:     map[string]any{"a": 1},
			want:     `{"a":1}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tmpl, err := renderer.Compile(tc.template)
			require.NoError(t, err)
			rendered, err := tmpl.Render(tc.data)
			require.NoError(t, err)
			require.Equal(t, tc.want, rendered)
		})
	}
}

func TestRendererRestrictsEnvironmentAndFiles(t *testing.T) {
	renderer := NewRenderer()
	for _, source := range []string{`{{ env "HOME" }}`, `{{ readFile "/etc/hosts" }}`, `{{ expandenv "$HOME" }}`} {
		_, err := renderer.Compile(source)
		require.ErrorContains(t, err, "not defined", source)
	}
}

func TestRendererCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "posts.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("hello {{ .name }}"), 0o600))

	renderer := NewRenderer()
	tmpl, err := renderer.Compile("@" + path)
	require.NoError(t, err)
	require.Equal(t, "posts.tmpl", tmpl.Name())
	rendered, err := tmpl.Render(map[string]any{"name": "world"})
	require.NoError(t, err)
	require.Equal(t, "hello world", rendered)

	_, err = renderer.Compile("@" + filepath.Join(dir, "missing.tmpl"))
	require.ErrorContains(t, err, "read")
	_, err = renderer.CompileFile(" ")
	require.ErrorContains(t, err, "path required")
}

func TestRendererEmptySource(t *testing.T) {
	tmpl, err := NewRenderer().Compile("   ")
	require.NoError(t, err)
	require.Nil(t, tmpl)

	_, err = tmpl.Render(nil)
	require.ErrorContains(t, err, "nil template")
	require.Equal(t, "", tmpl.Name())
}

func TestRendererCompileError(t *testing.T) {
	_, err := NewRenderer().Compile("{{ .name ")
	require.ErrorContains(t, err, "compile")
}
