package config

import (
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakajima/serverdata/internal/dialect"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0644))
	}
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{Fs: memFs(t, nil), Dir: "/work"})
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "serverdata.db", cfg.DSN)
	assert.True(t, cfg.Returning)
	assert.Equal(t, "specs", cfg.SpecsDir)
	assert.Empty(t, cfg.InBinding)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_Precedence(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/work/.serverdata.yaml": "driver: mysql\ndsn: from-file\nname: file_test\nspecs_dir: models\nin_binding: array\n",
		"/work/.env":             "SERVERDATA_DSN=from-dotenv\nSERVERDATA_NAME=dotenv_test\nUNRELATED=1\n",
		"/work/.env.local":       "SERVERDATA_NAME=local_test\n",
	})
	t.Setenv("SERVERDATA_SPECS_DIR", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("in-binding", "", "")
	flags.String("dialect", "", "")
	require.NoError(t, flags.Parse([]string{"--in-binding=scalar", "--dialect=postgres"}))

	cfg, err := Load(Options{Fs: fs, Dir: "/work", Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Driver, "config file over default")
	assert.Equal(t, "from-dotenv", cfg.DSN, ".env over config file")
	assert.Equal(t, "local_test", cfg.Name, ".env.local over .env")
	assert.Equal(t, "from-env", cfg.SpecsDir, "environment over config file")
	assert.Equal(t, "scalar", cfg.InBinding, "flag over config file")
	assert.Equal(t, "postgres", cfg.Dialect)
}

func TestLoad_DatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app_test")
	cfg, err := Load(Options{Fs: memFs(t, nil), Dir: "/work"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/app_test", cfg.DSN)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	fs := memFs(t, map[string]string{"/etc/sd.yaml": "returning: false\nlog_level: debug\n"})

	cfg, err := Load(Options{Fs: fs, Dir: "/work", ConfigFile: "/etc/sd.yaml"})
	require.NoError(t, err)
	assert.False(t, cfg.Returning)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = Load(Options{Fs: fs, Dir: "/work", ConfigFile: "/etc/missing.yaml"})
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		wantErr string
	}{
		{"in binding", "in_binding: sideways\n", "in_binding"},
		{"dialect", "dialect: oracle\n", "dialect"},
		{"log level", "log_level: chatty\n", "log_level"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := memFs(t, map[string]string{"/work/.serverdata.yaml": tc.file})
			_, err := Load(Options{Fs: fs, Dir: "/work"})
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestConfig_Store(t *testing.T) {
	cfg := &Config{Driver: "mysql", DSN: "dsn", Name: "n", InBinding: "array", Returning: false}
	sc := cfg.Store()
	assert.Equal(t, "mysql", sc.Driver)
	assert.Equal(t, "array", sc.InBinding)
	assert.True(t, sc.NoReturning)
}

func TestConfig_RenderDialect(t *testing.T) {
	d, err := (&Config{Driver: "sqlite3", Returning: true}).RenderDialect()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
	assert.True(t, d.Returning())

	d, err = (&Config{Driver: "sqlite3", Dialect: "postgres", InBinding: "scalar"}).RenderDialect()
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t, dialect.ScalarBind, d.InBinding())
	assert.False(t, d.Returning())
}
