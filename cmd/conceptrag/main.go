// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/poiesic/conceptrag/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "conceptrag",
		Usage:     "Concept-indexed retrieval and question answering over text documents",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (defaults are used if it does not exist)",
				Value:   config.DefaultPath,
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file loaded before the config",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Store location, overriding storage.path",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Storage backend (badger, json), overriding storage.backend",
			},
			&cli.BoolFlag{
				Name:  "no-ai",
				Usage: "Disable the embedding and generation services even if configured",
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return loadEnv(c.String("env-file"))
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add documents from files or inline text",
				ArgsUsage: "[file ...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "text",
						Aliases: []string{"t"},
						Usage:   "Inline document text (repeatable)",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source label for inline text",
						Value: "cli",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the knowledge base",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Show strategy, reasoning and sources",
					},
				},
			},
			{
				Name:      "route",
				Usage:     "Show how a question would be handled without answering it",
				ArgsUsage: "<question>",
				Action:    routeCommand,
			},
			{
				Name:      "search",
				Usage:     "List the chunks most similar to a query by embedding",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Log each search stage (shown with --log-level debug)",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show document, chunk and concept counts",
				Action: statsCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the concept index from the stored chunks",
				Action: reindexCommand,
				Flags: append(maintenanceFlags(),
					&cli.BoolFlag{
						Name:  "reextract",
						Usage: "Extract concepts from the chunk text again instead of using the stored ones",
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every chunk embedding with the configured embedding model",
				Action: reembedCommand,
				Flags:  maintenanceFlags(),
			},
			{
				Name:   "reset",
				Usage:  "Delete every document, chunk and index entry",
				Action: resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the reset",
					},
				},
			},
			{
				Name:      "export",
				Usage:     "Write the store as document_store.json and concept_index.json",
				ArgsUsage: "<dir>",
				Action:    exportCommand,
			},
			{
				Name:      "import",
				Usage:     "Add the documents of an exported JSON store",
				ArgsUsage: "<dir>",
				Action:    importCommand,
			},
			{
				Name:   "init-config",
				Usage:  "Write the default configuration to the --config path",
				Action: initConfigCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
			},
		},
	}
}

func maintenanceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of documents to process in each batch (0 uses the config)",
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N documents",
			Value: 10,
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts for failed embedding calls (0 uses the config)",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff (0 uses the config)",
		},
	}
}

// loadEnv loads path into the environment. A missing file is not an error;
// variables already set win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	errWriter := c.App.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(errWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
