package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ragstore/ragstore"
	"github.com/ragstore/ragstore/config"
	"github.com/ragstore/ragstore/internal/loader"
	"github.com/ragstore/ragstore/internal/providers"
	"github.com/ragstore/ragstore/internal/tui"
)

func main() {
	var (
		initFlag        = flag.Bool("init", false, "Create the database schema")
		dropFlag        = flag.Bool("drop", false, "Drop all tables")
		ingestDir       = flag.String("ingest", "", "Ingest every supported document under a directory")
		queryText       = flag.String("query", "", "Run a hybrid query and print the answer")
		globalText      = flag.String("global", "", "Run a global query across communities")
		exportPath      = flag.String("export", "", "Export a backup to a file")
		importPath      = flag.String("import", "", "Import a backup from a file")
		communitiesFlag = flag.Bool("communities", false, "Recompute communities")
		summariesFlag   = flag.Bool("summaries", false, "Rebuild community summaries")
		tuiFlag         = flag.Bool("tui", false, "Open the interactive retrieval console")
		verboseFlag     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	// A .env in the working directory can set the environment overrides
	// applied to the config file below.
	_ = godotenv.Load()

	log := logrus.New()
	if *verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if url := os.Getenv("RAGSTORE_DATABASE_URL"); url != "" {
		cfg.Database.ConnectionString = url
	}
	if url := os.Getenv("RAGSTORE_MODELS_URL"); url != "" {
		cfg.Models.BaseURL = url
	}

	client, err := ragstore.New(ragstore.Config{
		ConnectionString: cfg.Database.ConnectionString,
		Dimension:        cfg.Database.Dimension,
		TextConfig:       cfg.Database.TextConfig,
		Logger:           log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	models := providers.NewClient(cfg.Models.BaseURL,
		providers.WithEmbedModel(cfg.Models.EmbedModel),
		providers.WithChatModel(cfg.Models.ChatModel))

	ctx := context.Background()
	if err := run(ctx, client, models, cfg, runFlags{
		init:        *initFlag,
		drop:        *dropFlag,
		ingestDir:   *ingestDir,
		query:       *queryText,
		global:      *globalText,
		exportPath:  *exportPath,
		importPath:  *importPath,
		communities: *communitiesFlag,
		summaries:   *summariesFlag,
		tui:         *tuiFlag,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runFlags struct {
	init        bool
	drop        bool
	ingestDir   string
	query       string
	global      string
	exportPath  string
	importPath  string
	communities bool
	summaries   bool
	tui         bool
}

func run(ctx context.Context, client *ragstore.Client, models *providers.Client, cfg *config.Config, flags runFlags) error {
	switch {
	case flags.drop:
		if err := client.Drop(ctx); err != nil {
			return err
		}
		fmt.Println("Schema dropped")
		return nil

	case flags.init:
		if err := client.Init(ctx); err != nil {
			return err
		}
		fmt.Println("Schema initialized")
		return nil

	case flags.ingestDir != "":
		docs, err := loader.LoadDir(flags.ingestDir)
		if err != nil {
			return err
		}
		result, err := client.Ingest(ctx, docs, ragstore.IngestOptions{
			Embed: models.Embed,
			Chunk: ragstore.ChunkOptions{
				ChunkSize: cfg.Chunking.ChunkSize,
				Overlap:   cfg.Chunking.Overlap,
				Normalize: ragstore.NormalizeMarkdown,
			},
			OnProgress: func(title string, current, total int) {
				fmt.Printf("[%d/%d] %s\n", current, total, title)
			},
		})
		if err != nil {
			return err
		}
		fmt.Printf("Inserted %d documents (%d duplicates), %d new chunks, %d reused\n",
			result.DocumentsInserted, result.DuplicatesSkipped,
			result.ChunksInserted, result.ChunksReused)
		return nil

	case flags.query != "":
		result, err := client.Query(ctx, ragstore.QueryOptions{
			RetrieveOptions: ragstore.RetrieveOptions{
				Embed: models.Embed,
				SearchOptions: ragstore.SearchOptions{
					Query:     flags.query,
					Limit:     cfg.Search.Limit,
					GraphHops: cfg.Search.GraphHops,
				},
			},
			Generate: models.Generate,
			Rerank:   models.Rerank,
		})
		if err != nil {
			return err
		}
		fmt.Println(result.Answer)
		return nil

	case flags.global != "":
		result, err := client.GlobalQuery(ctx, ragstore.GlobalQueryOptions{
			Embed:    models.Embed,
			Generate: models.Generate,
			Query:    flags.global,
			Limit:    cfg.Search.Limit,
		})
		if err != nil {
			return err
		}
		fmt.Println(result.Answer)
		return nil

	case flags.exportPath != "":
		result, err := client.ExportBackup(ctx, flags.exportPath)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d documents to %s\n", result.DocumentsExported, result.OutputPath)
		return nil

	case flags.importPath != "":
		result, err := client.ImportBackup(ctx, flags.importPath)
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			fmt.Printf("Warning: %s\n", w)
		}
		fmt.Printf("Imported %d documents, %d chunks (%d duplicates skipped)\n",
			result.DocumentsImported, result.ChunksInserted, result.DuplicatesSkipped)
		return nil

	case flags.communities:
		count, err := client.DetectCommunities(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Detected %d communities\n", count)
		return nil

	case flags.summaries:
		result, err := client.BuildCommunitySummaries(ctx, ragstore.SummaryOptions{
			Embed: models.Embed,
			Summarize: func(ctx context.Context, members []ragstore.CommunityMember) (string, error) {
				var b []byte
				for _, m := range members {
					b = append(b, []byte("## "+m.Title+"\n\n"+m.Content+"\n\n")...)
				}
				return models.Generate(ctx, string(b), "Summarize the common themes of these documents.")
			},
		})
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d communities, generated %d summaries\n",
			result.CommunitiesProcessed, result.SummariesGenerated)
		return nil

	case flags.tui:
		return tui.Run(client, models.Embed)

	default:
		flag.Usage()
		return nil
	}
}
