package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/lexigraph/lexigraph/vectorstore/memory"
)

func TestSetupLogger(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	run := func(level string) error {
		app := &cli.App{
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Value: "info"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		return app.Run([]string{"lexigraph", "--log-level", level})
	}

	for _, level := range []string{"debug", "info", "warn", "error", "WARN"} {
		assert.NoError(t, run(level), "level %s", level)
	}

	err := run("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestBuildVectorBackend(t *testing.T) {
	run := func(name string) (backend interface{}, err error) {
		app := &cli.App{
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "vector-backend", Value: "memory"},
				&cli.StringFlag{Name: "pinecone-host"},
				&cli.StringFlag{Name: "pinecone-api-key"},
				&cli.StringFlag{Name: "pinecone-namespace"},
				&cli.StringFlag{Name: "chroma-url", Value: "http://localhost:8000"},
				&cli.StringFlag{Name: "chroma-collection", Value: "lexigraph"},
			},
			Action: func(c *cli.Context) error {
				backend, err = buildVectorBackend(c)
				return nil
			},
		}
		require.NoError(t, app.Run([]string{"lexigraph", "--vector-backend", name}))
		return backend, err
	}

	t.Run("memory", func(t *testing.T) {
		backend, err := run("memory")
		require.NoError(t, err)
		assert.IsType(t, &memory.Backend{}, backend)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := run("faiss")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown vector backend")
	})
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short text", snippet("short   text", 160))

	long := snippet("word word word word word", 10)
	assert.Equal(t, "word word …", long)
}
