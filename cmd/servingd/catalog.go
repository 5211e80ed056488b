package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"servingd/internal/registry"
	"servingd/pkg/types"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the SQLite model catalog",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Catalog database (defaults to sqlite_path from config)")

	open := func() (*registry.SQLiteCatalog, error) {
		path := dbPath
		if path == "" {
			cfg, err := opts.loadConfig()
			if err != nil {
				return nil, err
			}
			path = cfg.SQLitePath
		}
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("no catalog database: pass --db or set sqlite_path")
		}
		return registry.OpenSQLiteCatalog(path)
	}

	var (
		env     []string
		dir     string
		flavor  string
		version int
	)
	add := &cobra.Command{
		Use:   "add NAME -- COMMAND [ARGS...]",
		Short: "Register or replace the launch command of a model version",
		Example: `  servingd catalog add ElasticNet --version 3 -- \
    mlflow models serve -m models:/ElasticNet/3 -h {host} -p {port} --env-manager local`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer c.Close()
			e := registry.Entry{
				Name:    args[0],
				Version: version,
				Command: args[1:],
				Env:     env,
				Dir:     dir,
				Runtime: types.RuntimeDescriptor{Flavor: flavor},
			}
			if err := c.Upsert(cmd.Context(), e); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", e.Key())
			return err
		},
	}
	add.Flags().IntVar(&version, "version", 1, "Model version")
	add.Flags().StringArrayVar(&env, "env", nil, "KEY=VALUE added to the process environment (repeatable)")
	add.Flags().StringVar(&dir, "dir", "", "Working directory of the process")
	add.Flags().StringVar(&flavor, "flavor", "", "Model flavor, informational")

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered model versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer c.Close()
			entries, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVERSION\tCOMMAND")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Name, e.Version, strings.Join(e.Command, " "))
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")

	var rmVersion int
	remove := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a model version from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer c.Close()
			key := types.ModelKey{Name: args[0], Version: rmVersion}
			if err := c.Delete(cmd.Context(), key); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", key)
			return err
		},
	}
	remove.Flags().IntVar(&rmVersion, "version", 1, "Model version")

	cmd.AddCommand(add, list, remove)
	return cmd
}
