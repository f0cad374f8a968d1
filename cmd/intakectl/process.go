package main

import (
	"github.com/spf13/cobra"
)

func processCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Work with intake process instances",
	}

	var varsFile string
	start := &cobra.Command{
		Use:     "start <bpmn-process-id>",
		Short:   "Start the latest version of a deployed process",
		Example: "  intakectl process start loan-intake --vars application.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := map[string]interface{}{}
			if varsFile != "" {
				if err := readPayload(varsFile, &vars); err != nil {
					return err
				}
			}
			zb, err := a.zeebeClient()
			if err != nil {
				return err
			}
			key, err := zb.StartProcess(cmd.Context(), args[0], vars)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), map[string]interface{}{
				"bpmnProcessId":      args[0],
				"processInstanceKey": key,
			})
		},
	}
	start.Flags().StringVar(&varsFile, "vars", "", "process variables (YAML or JSON)")

	cmd.AddCommand(start)
	return cmd
}
