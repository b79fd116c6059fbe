package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/cwt/internal/config"
	"github.com/steveyegge/cwt/internal/style"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupConfig,
	Short:   "Print the effective configuration",
	Long: fmt.Sprintf(`Print the configuration cwt runs with: the defaults, overlaid with
%s, overlaid with environment variables (%s).`, config.ConfigPath, config.EnvAgentCommand),
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configPath bool

func init() {
	configCmd.Flags().BoolVar(&configPath, "path", false, "Print only the config file path")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	out := cmd.OutOrStdout()
	if configPath {
		fmt.Fprintln(out, config.FilePath(repo.root))
		return nil
	}
	fmt.Fprintln(out, style.Dim.Render("# "+config.FilePath(repo.root)))
	return repo.cfg.Encode(out)
}
