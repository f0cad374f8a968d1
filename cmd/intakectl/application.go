package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"loan-intake/internal/common/config"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/lending"
	"loan-intake/pkg/registry"

	css "loan-intake/internal/workers/application/check-signing-status"
	sa "loan-intake/internal/workers/application/submit-application"
	ud "loan-intake/internal/workers/application/upload-document"
)

// readPayload decodes a YAML or JSON file into v.
func readPayload(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// inputValidator loads the registry schemas. A missing registry disables
// local validation and leaves it to the staff backend.
func (a *app) inputValidator() *validation.Validator {
	reg, err := registry.LoadRegistry(a.cfg.RegistryPath)
	if err != nil {
		a.log.Warn("activity registry unavailable, skipping input validation", map[string]interface{}{"error": err.Error()})
		return nil
	}
	v, err := validation.NewValidator(reg)
	if err != nil {
		a.log.Warn("input schemas invalid, skipping input validation", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return v
}

func submitCmd(a *app) *cobra.Command {
	var (
		file             string
		rejectDuplicates bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an assembled application to the staff API",
		Long: `submit sends a step1/step3/step4 payload, read from a YAML or JSON file,
exactly as the submit-application worker would. Nothing is written to the
intake ledger.`,
		Example: "  intakectl submit --file application.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var input sa.Input
			if err := readPayload(file, &input); err != nil {
				return err
			}
			staff, err := a.staffClient()
			if err != nil {
				return err
			}
			h := sa.NewHandler(&sa.Config{RejectDuplicates: rejectDuplicates}, staff, nil, a.inputValidator(), a.log)
			out, err := h.Execute(cmd.Context(), &input)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "application payload (YAML or JSON)")
	cmd.Flags().BoolVar(&rejectDuplicates, "reject-duplicates", false, "fail instead of reusing an existing application")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func uploadCmd(a *app) *cobra.Command {
	var (
		docType string
		strict  bool
	)
	cmd := &cobra.Command{
		Use:   "upload <application-id> <file>",
		Short: "Validate and upload one document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			staff, err := a.staffClient()
			if err != nil {
				return err
			}
			h := ud.NewHandler(&ud.Config{
				Limits: lending.ValidationLimits{
					MinSize:        a.cfg.Documents.MinSize,
					MaxSize:        a.cfg.Documents.MaxSize,
					SuspiciousSize: a.cfg.Documents.SuspiciousSize,
				},
				RejectSuspicious: strict,
			}, staff, nil, a.log)

			out, err := h.Execute(cmd.Context(), &ud.Input{
				ApplicationID: args[0],
				DocumentType:  docType,
				FileName:      filepath.Base(args[1]),
				FileData:      base64.StdEncoding.EncodeToString(data),
			})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&docType, "type", "", "document type label, e.g. \"Bank Statements\"")
	cmd.Flags().BoolVar(&strict, "strict", false, "also refuse files graded suspicious")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func statusCmd(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status <application-id>",
		Short: "Show the signing status of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			staff, err := a.staffClient()
			if err != nil {
				return err
			}
			if !wait {
				st, err := staff.SignatureStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), st)
			}

			h := css.NewHandler(&css.Config{
				PollInterval:      config.GetDuration(a.cfg.Signing.PollInterval),
				MaxAttempts:       a.cfg.Signing.MaxAttempts,
				OverrideKeyPrefix: a.cfg.Signing.OverrideKeyPrefix,
			}, staff, a.redisClient(), a.log)
			out, err := h.Execute(cmd.Context(), &css.Input{ApplicationID: args[0]})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until signed, overridden or out of attempts")
	return cmd
}

func signingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signing",
		Short: "Manage signing overrides",
	}

	var (
		ttl     time.Duration
		publish string
	)
	override := &cobra.Command{
		Use:     "override <application-id>",
		Short:   "Mark an application as signed so polling stops",
		Example: "  intakectl signing override app-123 --ttl 2h --publish application-signed",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := a.requireRedis()
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = config.GetDuration(a.cfg.Signing.OverrideTTL)
			}
			if err := css.SetOverride(cmd.Context(), rdb, a.cfg.Signing.OverrideKeyPrefix, args[0], ttl); err != nil {
				return err
			}
			out := map[string]interface{}{
				"applicationId": args[0],
				"override":      true,
				"expiresIn":     ttl.String(),
			}
			if publish != "" {
				zb, err := a.zeebeClient()
				if err != nil {
					return err
				}
				vars := map[string]interface{}{"signingStatus": "overridden"}
				if err := zb.PublishMessage(cmd.Context(), publish, args[0], vars, ttl); err != nil {
					return fmt.Errorf("override stored but message not published: %w", err)
				}
				out["publishedMessage"] = publish
			}
			return a.render(cmd.OutOrStdout(), out)
		},
	}
	override.Flags().DurationVar(&ttl, "ttl", 0, "override lifetime (default signing.override_ttl)")
	override.Flags().StringVar(&publish, "publish", "", "also publish this Zeebe message, correlated by application id")

	clearCmd := &cobra.Command{
		Use:   "clear <application-id>",
		Short: "Remove a signing override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := a.requireRedis()
			if err != nil {
				return err
			}
			if err := css.ClearOverride(cmd.Context(), rdb, a.cfg.Signing.OverrideKeyPrefix, args[0]); err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), map[string]interface{}{
				"applicationId": args[0],
				"override":      false,
			})
		},
	}

	cmd.AddCommand(override, clearCmd)
	return cmd
}

func checkDocumentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-documents <type>=<file>...",
		Short: "Validate a set of document files locally",
		Long: `check-documents grades each file the way upload-document would, without
uploading anything. The command fails when any file is a placeholder or
invalid; suspicious files are reported but accepted.`,
		Example: `  intakectl check-documents "Bank Statements=jan.pdf" "Void Cheque=void.png"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := make([]lending.DocumentUpload, 0, len(args))
			for _, arg := range args {
				label, path, ok := strings.Cut(arg, "=")
				if !ok || label == "" || path == "" {
					return fmt.Errorf("expected <type>=<file>, got %q", arg)
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				docs = append(docs, lending.DocumentUpload{
					FileName:     filepath.Base(path),
					Data:         data,
					DocumentType: lending.NormalizeDocument(label),
				})
			}

			result := lending.ValidateDocumentSet(docs, lending.ValidationLimits{
				MinSize:        a.cfg.Documents.MinSize,
				MaxSize:        a.cfg.Documents.MaxSize,
				SuspiciousSize: a.cfg.Documents.SuspiciousSize,
			})
			if err := a.render(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("%d of %d documents refused", result.Summary.Placeholder+result.Summary.Invalid, result.Summary.Total)
			}
			return nil
		},
	}
}
