package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"factoryops/infrastructure/persistence/gormdb"
	"factoryops/infrastructure/persistence/mocks"
	"factoryops/infrastructure/persistence/retry"
	"factoryops/infrastructure/rules"
	"factoryops/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ============================================================================
// migrate
// ============================================================================

func newMigrateCommand() *cobra.Command {
	var seed bool
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Database.Type == "mock" {
				return fmt.Errorf("migrate needs a SQL database, database.type is %q", cfg.Database.Type)
			}
			db, err := connect(cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := gormdb.Migrate(db); err != nil {
				return err
			}
			logger.Info("Database migrated", zap.String("driver", cfg.Database.Type))

			if !seed {
				return nil
			}
			repos := gormdb.NewRepositories(db)
			uow := gormdb.NewUnitOfWork(db, retry.FromAppConfig(cfg))
			err = uow.Execute(cmd.Context(), func(ctx context.Context) error {
				return mocks.NewDemoData(time.Now()).Load(ctx, repos)
			})
			if err != nil {
				return fmt.Errorf("seed demo data: %w", err)
			}
			logger.Info("Demo data loaded")
			return nil
		},
	}
	c.Flags().BoolVar(&seed, "seed", false, "load demo records after migrating")
	return c
}

// ============================================================================
// rules
// ============================================================================

func newRulesCommand() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect validation rule files",
	}
	rulesCmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Parse a rule file and report problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := rules.Check(args[0])
			if err != nil {
				return err
			}
			names := make([]string, 0, len(f.Groups))
			for name := range f.Groups {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%-16s %d rules\n", name, len(f.Groups[name].Rules))
			}
			fmt.Fprintf(out, "%s: ok\n", args[0])
			return nil
		},
	})
	return rulesCmd
}

// ============================================================================
// tokens
// ============================================================================

func newTokensCommand() *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Maintain confirmation tokens",
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete tokens that expired or were consumed before the cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := openBackend(cfg, time.Now)
			if err != nil {
				return err
			}
			defer closeDB(store.db)
			engine, err := newEngine(cfg, store, nil, nil, time.Now)
			if err != nil {
				return err
			}
			n, err := engine.PruneTokens(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d tokens\n", n)
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "keep tokens settled within this window")
	tokensCmd.AddCommand(prune)
	return tokensCmd
}
