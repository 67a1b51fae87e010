package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/config"
)

func TestCollectURLs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "https://a.test/1\n\n# seed pages\nhttps://a.test/2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := collectURLs([]string{"https://a.test/0"}, path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.test/0", "https://a.test/1", "https://a.test/2"}, urls)

	urls, err = collectURLs([]string{"https://a.test/0"}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.test/0"}, urls)

	_, err = collectURLs(nil, filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestLoadProxies(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Proxy: config.ProxyConfig{
			List:                []string{"10.0.0.1:8080", "user:pass@10.0.0.2:8081"},
			MaxRequestsPerProxy: 10,
		},
	}
	manager, err := loadProxies(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, manager.PoolSize())

	cfg.Proxy.File = filepath.Join(t.TempDir(), "missing.txt")
	_, err = loadProxies(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestParsersCommandListsBuiltins(t *testing.T) {
	t.Parallel()

	cmd := newParsersCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "knifecenter")
}

func TestCrawlCommandRequiresURLs(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"crawl"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no start URLs")
}
