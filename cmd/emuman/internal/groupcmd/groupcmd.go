// Package groupcmd builds the cobra command tree shared by every
// command group (mame, sl, nointro, redump, extras): init, verify,
// verify-all, repair (alias add), repair-all, list, games, report,
// split, wired to the common flag set of spec §6 (-r, -i, -L, -D,
// --dry-run, --sort, --simple, --threads). It is grounded on the
// teacher's per-subsystem command grouping (cmd/mutagen/sync,
// cmd/mutagen/forward each registering their own subcommand family
// under cobra), generalized to five catalog families instead of two
// session types.
package groupcmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tuffy/emuman/cmd/emuman/common"
	"github.com/tuffy/emuman/pkg/catalog"
	"github.com/tuffy/emuman/pkg/catalogio"
	"github.com/tuffy/emuman/pkg/config"
	"github.com/tuffy/emuman/pkg/coordinator"
	"github.com/tuffy/emuman/pkg/logging"
	"github.com/tuffy/emuman/pkg/split"
)

// Spec parameterizes one command group.
type Spec struct {
	// Name is the cobra Use string and the category's catalog directory
	// name, e.g. "mame".
	Name string
	// Category identifies this group's entry in the persisted config.
	Category config.Category
	// CatalogDir holds the YAML catalog documents for this category
	// (see pkg/catalogio).
	CatalogDir string
}

// flags holds the values bound by the common flag set, shared across a
// group's subcommands (spec §6).
type flags struct {
	root    string
	inputs  []string
	list    string
	dat     string
	dryRun  bool
	sort    string
	simple  bool
	threads int
}

// New builds the cobra.Command for one category.
func New(spec Spec) *cobra.Command {
	f := &flags{}

	group := &cobra.Command{
		Use:   spec.Name,
		Short: fmt.Sprintf("Manage the %s catalog family", spec.Name),
	}

	persistent := group.PersistentFlags()
	persistent.StringVarP(&f.root, "root", "r", "", "destination root")
	persistent.StringArrayVarP(&f.inputs, "input", "i", nil, "input path or URL (repeatable)")
	persistent.StringVarP(&f.list, "list", "L", "", "software list name")
	persistent.StringVarP(&f.dat, "dat", "D", "", "catalog (dat) name")
	persistent.BoolVar(&f.dryRun, "dry-run", false, "record intended actions without mutating the filesystem")
	persistent.StringVar(&f.sort, "sort", "", "report sort order: description, creator, or year")
	persistent.BoolVar(&f.simple, "simple", false, "omit OK games from the report")
	persistent.IntVar(&f.threads, "threads", 0, "worker pool size (default: logical CPU count)")

	store := config.New(mustConfigPath())

	group.AddCommand(
		newInitCommand(spec, f, store),
		newGamesCommand(spec, f),
		newListCommand(spec, f),
		newVerifyCommand(spec, f, store, false),
		newVerifyCommand(spec, f, store, true),
		newRepairCommand(spec, f, store),
		newRepairAllCommand(spec, f, store),
		newReportCommand(spec, f, store),
		newSplitCommand(spec, f),
	)

	return group
}

func mustConfigPath() string {
	path, err := config.DefaultPath()
	if err != nil {
		common.Fatal(errors.Wrap(err, "unable to determine configuration path"))
	}
	return path
}

// loadCatalog resolves which catalog id to read (the explicit -D flag,
// or the sole catalog found under the category's CatalogDir) and loads
// it.
func loadCatalog(spec Spec, f *flags) (catalog.Catalog, error) {
	id := f.dat
	if id == "" {
		ids, err := catalogio.List(spec.CatalogDir)
		if err != nil {
			return catalog.Catalog{}, common.NewExitError(err, 3)
		}
		if len(ids) == 0 {
			return catalog.Catalog{}, common.NewExitError(
				errors.Errorf("no catalogs found in %s; run 'emuman %s init' or pass -D", spec.CatalogDir, spec.Name), 3)
		}
		if len(ids) > 1 {
			return catalog.Catalog{}, common.NewExitError(
				errors.Errorf("multiple catalogs found in %s; specify one with -D: %v", spec.CatalogDir, ids), 3)
		}
		id = ids[0]
	}
	cat, err := catalogio.Load(spec.CatalogDir, id)
	if err != nil {
		return catalog.Catalog{}, common.NewExitError(err, 3)
	}
	return cat, nil
}

func gameMeta(cat catalog.Catalog) map[string]common.GameMeta {
	meta := make(map[string]common.GameMeta, len(cat.Games))
	for name, game := range cat.Games {
		meta[name] = common.GameMeta{
			Name:        game.Name,
			Description: game.Description,
			Creator:     game.Creator,
			Year:        game.Year,
		}
	}
	return meta
}

func resolveRoot(spec Spec, f *flags, store *config.Store) (string, error) {
	if spec.Category == config.SL && f.list != "" {
		if root, ok, err := store.SoftwareListRoot(f.list); err != nil {
			return "", common.NewExitError(err, 3)
		} else if ok && f.root == "" {
			return root, nil
		}
	}
	root, err := config.ResolveRoot(f.root, spec.Category, store)
	if err != nil {
		return "", common.NewExitError(err, 3)
	}
	return root, nil
}

func newInitCommand(spec Spec, f *flags, store *config.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Remember the destination root for this category",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.ResolveRoot(f.root, spec.Category, store)
			if err != nil {
				return common.NewExitError(err, 3)
			}
			if spec.Category == config.SL && f.list != "" {
				if err := store.SetSoftwareListRoot(f.list, root); err != nil {
					return common.NewExitError(err, 3)
				}
				return nil
			}
			if err := store.SetRoot(spec.Category, root); err != nil {
				return common.NewExitError(err, 3)
			}
			return nil
		},
	}
}

func newGamesCommand(spec Spec, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List every game in the configured catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(spec, f)
			if err != nil {
				return err
			}
			for _, game := range catalogio.EnumerateGames(cat) {
				fmt.Println(game.Name)
			}
			return nil
		},
	}
}

func newListCommand(spec Spec, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <game>",
		Short: "List a game's effective part names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(spec, f)
			if err != nil {
				return err
			}
			effective, err := cat.EffectiveParts(args[0])
			if err != nil {
				return common.NewExitError(err, 3)
			}
			names := make([]string, 0, len(effective))
			for name := range effective {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newVerifyCommand(spec Spec, f *flags, store *config.Store, all bool) *cobra.Command {
	use := "verify [game...]"
	if all {
		use = "verify-all"
	}
	return &cobra.Command{
		Use:   use,
		Short: "Verify one or more games against the destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(spec, f)
			if err != nil {
				return err
			}
			root, err := resolveRoot(spec, f, store)
			if err != nil {
				return err
			}
			games := args
			if all || len(games) == 0 {
				games = cat.Names()
			}

			c := coordinator.New(cat, root, f.threads, logging.RootLogger.Sublogger(spec.Name))
			reporter, err := c.Verify(context.Background(), games)
			if err != nil {
				return common.NewExitError(err, 3)
			}
			common.RenderReport(reporter, gameMeta(cat), common.SortKey(f.sort), f.simple)
			if reporter.ExitCode() != 0 {
				cmd.SilenceUsage = true
				return common.NewExitError(errors.New("one or more games failed verification"), 1)
			}
			return nil
		},
	}
}

func newRepairCommand(spec Spec, f *flags, store *config.Store) *cobra.Command {
	return &cobra.Command{
		Use:     "repair <game...>",
		Aliases: []string{"add"},
		Short:   "Repair one or more games from the given inputs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(spec, f)
			if err != nil {
				return err
			}
			root, err := resolveRoot(spec, f, store)
			if err != nil {
				return err
			}
			c := coordinator.New(cat, root, f.threads, logging.RootLogger.Sublogger(spec.Name))
			reporter, err := c.Repair(context.Background(), args, f.inputs, f.dryRun)
			if err != nil {
				return common.NewExitError(err, 3)
			}
			common.RenderReport(reporter, gameMeta(cat), common.SortKey(f.sort), f.simple)
			if reporter.ExitCode() != 0 {
				cmd.SilenceUsage = true
				return common.NewExitError(errors.New("one or more games could not be repaired"), 1)
			}
			return nil
		},
	}
}

func newRepairAllCommand(spec Spec, f *flags, store *config.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-all",
		Short: "Repair every game resolvable from the given inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(spec, f)
			if err != nil {
				return err
			}
			root, err := resolveRoot(spec, f, store)
			if err != nil {
				return err
			}
			c := coordinator.New(cat, root, f.threads, logging.RootLogger.Sublogger(spec.Name))
			reporter, err := c.RepairAll(context.Background(), f.inputs, f.dryRun)
			if err != nil {
				return common.NewExitError(err, 3)
			}
			common.RenderReport(reporter, gameMeta(cat), common.SortKey(f.sort), f.simple)
			if reporter.ExitCode() != 0 {
				cmd.SilenceUsage = true
				return common.NewExitError(errors.New("one or more games could not be repaired"), 1)
			}
			return nil
		},
	}
}

func newReportCommand(spec Spec, f *flags, store *config.Store) *cobra.Command {
	cmd := newVerifyCommand(spec, f, store, true)
	cmd.Use = "report"
	cmd.Short = "Print a summary report without repairing anything"
	return cmd
}

func newSplitCommand(spec Spec, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "split <blob>",
		Short: "Split a combined blob into its catalog parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(spec, f)
			if err != nil {
				return err
			}
			outDir := f.root
			if outDir == "" {
				outDir = "."
			}
			game, err := split.Split(cat, args[0], outDir)
			if err != nil {
				cmd.SilenceUsage = true
				return common.NewExitError(err, 3)
			}
			fmt.Printf("matched %s\n", game)
			return nil
		},
	}
}
