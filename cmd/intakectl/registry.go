package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loan-intake/internal/common/validation"
	"loan-intake/pkg/registry"
)

func registryCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and maintain the activity registry",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "registry file (default: registry_path from config)")

	load := func() (*registry.ActivityRegistry, string, error) {
		p := path
		if p == "" {
			p = a.cfg.RegistryPath
		}
		reg, err := registry.LoadRegistry(p)
		return reg, p, err
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check registry structure and compile every input schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, _, err := load()
			if err != nil {
				return err
			}
			problems := reg.Check()
			if len(reg.Activities) == 0 {
				problems = append(problems, "registry contains no activities")
			}
			if _, err := validation.NewValidator(reg); err != nil {
				problems = append(problems, err.Error())
			}
			if len(problems) > 0 {
				return fmt.Errorf("registry validation failed:\n  %s", strings.Join(problems, "\n  "))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered activities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, _, err := load()
			if err != nil {
				return err
			}
			type row struct {
				ID       string `json:"id"`
				TaskType string `json:"taskType"`
				Status   string `json:"status"`
				Timeout  string `json:"timeout"`
				Retries  int    `json:"retries"`
			}
			rows := make([]row, 0, len(reg.Activities))
			for _, act := range reg.Activities {
				rows = append(rows, row{act.ID, act.TaskType, act.ImplementationStatus, act.Timeout, act.Retries})
			}
			return a.render(cmd.OutOrStdout(), rows)
		},
	}

	set := &cobra.Command{
		Use:     "set <activity-id> <field> <value>",
		Short:   "Update one field of an activity",
		Example: "  intakectl registry set application.signing.check timeout 120s",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, p, err := load()
			if err != nil {
				return err
			}
			if err := reg.SetField(args[0], args[1], args[2]); err != nil {
				return err
			}
			if err := reg.Save(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated activity %s, field %s to %s\n", args[0], args[1], args[2])
			return nil
		},
	}

	cmd.AddCommand(validate, list, set)
	return cmd
}
