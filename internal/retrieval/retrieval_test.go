package retrieval_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iluksbr/filerelay/internal/client"
	"github.com/iluksbr/filerelay/internal/fsadapter"
	"github.com/iluksbr/filerelay/internal/relaylog"
	"github.com/iluksbr/filerelay/internal/relaymetrics"
	"github.com/iluksbr/filerelay/internal/retrieval"
	"github.com/iluksbr/filerelay/internal/server"
	"github.com/iluksbr/filerelay/internal/transport/null"
)

func newClient(t *testing.T, root string) *client.Client {
	t.Helper()
	clientT, serverT := null.NewPair()
	sandbox, err := fsadapter.NewSandbox([]fsadapter.Prefix{{Real: root}})
	require.NoError(t, err)

	log := relaylog.Component(relaylog.New(io.Discard, logrus.ErrorLevel), "test")
	srv := server.New(serverT, sandbox, relaymetrics.NewServerMetrics(prometheus.NewRegistry()), log)
	go srv.Serve()

	return client.New(clientT, relaymetrics.NewClientMetrics(prometheus.NewRegistry()), log)
}

func TestFetchCodeAssemblesHeadersAndBody(t *testing.T) {
	root := t.TempDir()
	codeDir := filepath.Join(root, "00042")
	require.NoError(t, os.MkdirAll(codeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(codeDir, "hello.txt"), []byte("hi there"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(codeDir, ".headers"), []byte("Content-Type: text/plain\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(codeDir, ".meta"), []byte("owner: test\n"), 0o644))

	c := newClient(t, root)
	headers, body, err := retrieval.FetchCode(c, root, "42")
	require.NoError(t, err)
	defer body.Close()

	require.Equal(t, "text/plain", headers.Get("Content-Type"))
	require.Equal(t, "8", headers.Get("Content-Length"))
	require.Contains(t, headers.Get("Content-Disposition"), `filename="hello.txt"`)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "hi there", string(data))
}

func TestFetchCodeNotFound(t *testing.T) {
	root := t.TempDir()
	c := newClient(t, root)
	_, _, err := retrieval.FetchCode(c, root, "99999")
	require.ErrorIs(t, err, retrieval.ErrCodeNotFound)
}

func TestNormalizeCodeZeroPadsNumeric(t *testing.T) {
	require.Equal(t, "00042", retrieval.NormalizeCode("42"))
	require.Equal(t, "abc42", retrieval.NormalizeCode("abc42"))
}
