package repopath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSlash(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain relative path", "suite/LoginTest", `suite\LoginTest`},
		{"leading dot segment", "./suite/LoginTest", `suite\LoginTest`},
		{"surrounding slashes trimmed", "/suite/LoginTest/", `suite\LoginTest`},
		{"already canonical", `suite\LoginTest`, `suite\LoginTest`},
		{"single segment", "LoginTest", "LoginTest"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromSlash(tt.in))
		})
	}
}

func TestToSlashRoundTrip(t *testing.T) {
	assert.Equal(t, "suite/LoginTest", ToSlash(FromSlash("suite/LoginTest")))
}

func TestSplitPrefix(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantPkg  string
		wantName string
	}{
		{"nested package", `area\suite\LoginTest`, `area\suite`, "LoginTest"},
		{"single package folder", `suite\LoginTest`, "suite", "LoginTest"},
		{"root level test", "LoginTest", "", "LoginTest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, name := SplitPrefix(tt.in)
			assert.Equal(t, tt.wantPkg, pkg)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestJoin(t *testing.T) {
	t.Run("with logical name", func(t *testing.T) {
		got := Join(`suite\LoginTest`, "Action1", "Login")
		assert.Equal(t, `suite\LoginTest\Action1:Login`, got)
	})

	t.Run("logical name falls back to action name", func(t *testing.T) {
		got := Join(`suite\LoginTest`, "Action1", "")
		assert.Equal(t, `suite\LoginTest\Action1:Action1`, got)
	})
}

func TestParse(t *testing.T) {
	t.Run("full path", func(t *testing.T) {
		ref, err := Parse(`area\suite\LoginTest\Action1:Login`)
		require.NoError(t, err)
		assert.Equal(t, `area\suite\LoginTest`, ref.TestPath)
		assert.Equal(t, "Action1", ref.ActionName)
		assert.Equal(t, "Login", ref.LogicalName)
	})

	t.Run("missing logical name falls back to action name", func(t *testing.T) {
		ref, err := Parse(`suite\LoginTest\Action1`)
		require.NoError(t, err)
		assert.Equal(t, "Action1", ref.ActionName)
		assert.Equal(t, "Action1", ref.LogicalName)
	})

	t.Run("logical name may contain colons", func(t *testing.T) {
		ref, err := Parse(`suite\LoginTest\Action1:Login:v2`)
		require.NoError(t, err)
		assert.Equal(t, "Action1", ref.ActionName)
		assert.Equal(t, "Login:v2", ref.LogicalName)
	})

	t.Run("no folder segment is an error", func(t *testing.T) {
		_, err := Parse("Action1:Login")
		assert.Error(t, err)
	})

	t.Run("empty action name is an error", func(t *testing.T) {
		_, err := Parse(`suite\LoginTest\:Login`)
		assert.Error(t, err)
	})
}

func TestTestFolder(t *testing.T) {
	folder, err := TestFolder(`suite\LoginTest\Action1:Login`)
	require.NoError(t, err)
	assert.Equal(t, `suite\LoginTest`, folder)
}

func TestTestName(t *testing.T) {
	assert.Equal(t, "LoginTest", TestName(`area\suite\LoginTest`))
	assert.Equal(t, "LoginTest", TestName("LoginTest"))
}

func TestKey(t *testing.T) {
	t.Run("case folded", func(t *testing.T) {
		assert.Equal(t, Key(`Suite\LoginTest`), Key(`suite\logintest`))
	})

	t.Run("slash and backslash forms collide", func(t *testing.T) {
		assert.Equal(t, Key("suite/LoginTest"), Key(`suite\LoginTest`))
	})
}
