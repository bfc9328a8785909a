package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/infra/metrics"
	"github.com/filiksyos/ghostmrr/internal/usecase"
	"github.com/filiksyos/ghostmrr/pkg/badge"
)

func verifyCmd(e *env) *cobra.Command {
	var (
		mrr         uint64
		customers   uint64
		metricsFile string
		accountID   string
		unbound     bool
		revealExact bool
		displayName string
		join        string
		outPath     string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Sign the current metrics with your identity and write a badge file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var source usecase.MetricsSource
			switch {
			case metricsFile != "":
				source = metrics.FileSource{Path: metricsFile}
			case cmd.Flags().Changed("mrr"):
				source = metrics.StaticSource{MRR: mrr, Customers: customers}
			default:
				return errors.New("one of --mrr or --metrics-file is required")
			}

			uc := &usecase.IssueBadge{Keys: e.keys, Source: source, Clock: e.now}
			claim, err := uc.Execute(cmd.Context(), usecase.IssueBadgeRequest{
				AccountID:   accountID,
				Unbound:     unbound,
				DisplayName: displayName,
				RevealExact: revealExact,
				JoinGroup:   domain.GroupTag(join),
			})
			if err != nil {
				return err
			}
			payload, err := badge.MarshalClaim(claim)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, payload, 0o644); err != nil {
				return fmt.Errorf("write badge: %w", err)
			}

			printClaim(e.out, claim)
			abs, err := filepath.Abs(outPath)
			if err != nil {
				abs = outPath
			}
			fmt.Fprintf(e.out, "\nBadge written to %s\n", abs)
			if !claim.HasAccountHash() {
				fmt.Fprintln(e.out, "Note: this badge is not bound to a billing account; resubmissions are not checked for freshness.")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&mrr, "mrr", 0, "monthly recurring revenue in whole currency units")
	f.Uint64Var(&customers, "customers", 0, "active paying customers")
	f.StringVar(&metricsFile, "metrics-file", "", "JSON file with mrr, customers and accountId")
	f.StringVar(&accountID, "account-id", "", "billing account id to bind the badge to")
	f.BoolVar(&unbound, "unbound", false, "do not bind the badge to a billing account")
	f.BoolVar(&revealExact, "reveal-exact", false, "show exact figures publicly instead of only the tier")
	f.StringVar(&displayName, "display-name", "", "public display name")
	f.StringVar(&join, "join", "", "group to join (exact-numbers, 10-mrr-club)")
	f.StringVarP(&outPath, "out", "o", "verification.json", "output file")
	return cmd
}

func checkCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Verify a badge file locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claim, err := readClaimFile(args[0])
			if err != nil {
				return err
			}
			printClaim(e.out, claim)
			outcome := badge.Verify(claim)
			if !outcome.Valid {
				fmt.Fprintf(e.out, "\nSignature INVALID (%s)\n", describeRejection(outcome))
				return outcome.Err()
			}
			fmt.Fprintln(e.out, "\nSignature valid. Badge is authentic.")
			return nil
		},
	}
}

func didCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "did",
		Short: "Manage your decentralized identifier",
	}
	cmd.AddCommand(didShowCmd(e), didResetCmd(e))
	return cmd
}

func didShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print your DID, creating an identity if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := e.keys.LoadOrCreate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "DID:        %s\n", kp.DID)
			fmt.Fprintf(e.out, "Public key: %s\n", kp.PublicKeyBase64())
			fmt.Fprintf(e.out, "Keypair:    %s\n", e.keys.Path())
			fmt.Fprintln(e.out, "\nThis DID is reused for all future verifications.")
			return nil
		},
	}
}

func didResetCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete your identity; a new one is created on next use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := e.keys.Load(cmd.Context())
			switch {
			case errors.Is(err, os.ErrNotExist):
				fmt.Fprintln(e.out, "No existing keypair found. Nothing to reset.")
				return nil
			case errors.Is(err, domain.ErrCorruptKeypair):
				fmt.Fprintln(e.out, "Current keypair file is unreadable.")
			case err != nil:
				return err
			default:
				fmt.Fprintf(e.out, "Current DID: %s\n", kp.DID)
			}
			fmt.Fprintln(e.out, "Existing badges stay valid but will not match your new DID.")
			if !yes && !confirm(e, "Reset your DID?") {
				fmt.Fprintln(e.out, "Reset cancelled.")
				return nil
			}
			if _, err := e.keys.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "DID reset. A new one will be generated on your next verification.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func submitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <file>",
		Short: "Verify a badge file locally and submit it to the badge service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claim, err := readClaimFile(args[0])
			if err != nil {
				return err
			}
			if outcome := badge.Verify(claim); !outcome.Valid {
				return fmt.Errorf("refusing to submit: %w", outcome.Err())
			}
			res, err := e.client.Submit(cmd.Context(), claim)
			if err != nil {
				return err
			}
			verb := "created"
			if res.IsUpdate {
				verb = "updated"
			}
			fmt.Fprintf(e.out, "Badge %s on %s\n", verb, e.cfg.ServerURL)
			printPublicBadge(e.out, res.Badge)
			return nil
		},
	}
}

func readClaimFile(path string) (domain.Claim, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("read badge: %w", err)
	}
	return badge.ParseClaim(raw)
}
