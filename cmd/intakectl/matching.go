package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"loan-intake/internal/lending"
	fep "loan-intake/internal/workers/matching/filter-eligible-products"
	rc "loan-intake/internal/workers/matching/recommend-categories"
	rdr "loan-intake/internal/workers/matching/resolve-document-requirements"
)

// profileFlags collects an applicant profile from the command line.
type profileFlags struct {
	country     string
	amount      string
	category    string
	purpose     string
	receivables string
}

func (p *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.country, "country", "", "applicant country (CA, US)")
	cmd.Flags().StringVar(&p.amount, "amount", "0", "requested amount")
	cmd.Flags().StringVar(&p.category, "category", "", "requested product category")
	cmd.Flags().StringVar(&p.purpose, "purpose", "", "funds purpose")
	cmd.Flags().StringVar(&p.receivables, "receivables", "", "accounts receivable balance (empty means not asked)")
}

func (p *profileFlags) profile() (lending.ApplicantProfile, error) {
	amount, err := parseAmountFlag(p.amount)
	if err != nil {
		return lending.ApplicantProfile{}, fmt.Errorf("--amount: %w", err)
	}
	profile := lending.ApplicantProfile{
		Country:         p.country,
		RequestedAmount: amount,
		Category:        p.category,
		FundsPurpose:    p.purpose,
	}
	if strings.TrimSpace(p.receivables) != "" {
		ar, err := parseAmountFlag(p.receivables)
		if err != nil {
			return lending.ApplicantProfile{}, fmt.Errorf("--receivables: %w", err)
		}
		profile.AccountsReceivableBalance = &ar
	}
	return profile, nil
}

func parseAmountFlag(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(raw)
	if cleaned == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(cleaned)
}

func productsCmd(a *app) *cobra.Command {
	var (
		flags   profileFlags
		refresh bool
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List lender products eligible for a profile",
		Example: `  intakectl products --country CA --amount 50000 --category "Line of Credit"
  intakectl products --country US --amount 250000 --explain -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := flags.profile()
			if err != nil {
				return err
			}
			products, err := a.catalogService()
			if err != nil {
				return err
			}
			if refresh {
				if _, err := products.Refresh(cmd.Context()); err != nil {
					return fmt.Errorf("refresh catalog: %w", err)
				}
			}

			h := fep.NewHandler(&fep.Config{IncludeRejections: explain}, products, a.log)
			out, err := h.Execute(cmd.Context(), &fep.Input{ApplicantProfile: profile, Explain: explain})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), out)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload the catalog from the staff API first")
	cmd.Flags().BoolVar(&explain, "explain", false, "include the reasons each other product was rejected")
	return cmd
}

func recommendCmd(a *app) *cobra.Command {
	var (
		flags profileFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank product categories for a profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := flags.profile()
			if err != nil {
				return err
			}
			products, err := a.catalogService()
			if err != nil {
				return err
			}
			h := rc.NewHandler(&rc.Config{Limit: limit}, products, a.log)
			out, err := h.Execute(cmd.Context(), &rc.Input{ApplicantProfile: profile})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), out)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of categories (0 for all)")
	return cmd
}

func documentsCmd(a *app) *cobra.Command {
	var (
		flags       profileFlags
		forCategory string
	)
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Show the document checklist for a profile",
		Long: `documents prints the documents required by every product eligible for the
profile. With --for-category it prints a category's default checklist
instead, without contacting the staff API.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if forCategory != "" {
				ref := lending.ParseCategory(forCategory)
				if !ref.Known() {
					return fmt.Errorf("unknown category %q", forCategory)
				}
				return a.render(cmd.OutOrStdout(), map[string]interface{}{
					"category":          ref.Category,
					"requiredDocuments": lending.DocumentsForCategory(ref.Category),
				})
			}

			profile, err := flags.profile()
			if err != nil {
				return err
			}
			products, err := a.catalogService()
			if err != nil {
				return err
			}
			h := rdr.NewHandler(&rdr.Config{}, products, a.log)
			out, err := h.Execute(cmd.Context(), &rdr.Input{ApplicantProfile: profile})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), out)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&forCategory, "for-category", "", "print the default checklist of a category")
	return cmd
}
