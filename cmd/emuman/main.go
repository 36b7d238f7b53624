package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuffy/emuman/cmd/emuman/common"
	"github.com/tuffy/emuman/cmd/emuman/internal/groupcmd"
	"github.com/tuffy/emuman/pkg/config"
)

const version = "0.1.0"

func rootMain(command *cobra.Command, arguments []string) {
	if rootConfiguration.version {
		fmt.Println(version)
		return
	}
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "emuman",
	Short: "emuman verifies and repairs ROM/software collections against a catalog",
	Run:   rootMain,
}

var rootConfiguration struct {
	version bool
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")

	// Disable Cobra's command sorting so the category groups list in the
	// order we register them rather than alphabetically.
	cobra.EnableCommandSorting = false

	// Mousetrap's console-launch enforcement is unwanted for a tool run
	// from scripts and CI as often as interactively.
	cobra.MousetrapHelpText = ""

	rootCommand.AddCommand(
		groupcmd.New(groupcmd.Spec{Name: "mame", Category: config.Mame, CatalogDir: catalogDir("mame")}),
		groupcmd.New(groupcmd.Spec{Name: "sl", Category: config.SL, CatalogDir: catalogDir("sl")}),
		groupcmd.New(groupcmd.Spec{Name: "nointro", Category: config.NoIntro, CatalogDir: catalogDir("nointro")}),
		groupcmd.New(groupcmd.Spec{Name: "redump", Category: config.Redump, CatalogDir: catalogDir("redump")}),
		groupcmd.New(groupcmd.Spec{Name: "extras", Category: config.Extras, CatalogDir: catalogDir("extras")}),
	)
}

// catalogDir resolves where a category's catalog documents live:
// EMUMAN_CATALOG_DIR/<name> if set, otherwise $HOME/.emuman/catalogs/<name>.
func catalogDir(name string) string {
	if base := os.Getenv("EMUMAN_CATALOG_DIR"); base != "" {
		return base + string(os.PathSeparator) + name
	}
	home, err := os.UserHomeDir()
	if err != nil {
		common.Fatal(err)
	}
	return home + "/.emuman/catalogs/" + name
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(common.ExitCode(err))
	}
}
