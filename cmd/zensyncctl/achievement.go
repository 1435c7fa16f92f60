package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Gideonite22/zensync-meditation-assets/config"
	"github.com/Gideonite22/zensync-meditation-assets/internal/application/query"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/sharing"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/persistence/postgres"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/signing"
)

var achievementCmd = &cobra.Command{
	Use:   "achievement",
	Short: "Inspect the achievement ledger",
}

var achievementVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Look up an achievement by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runAchievementVerify,
}

var attestationVerifyCmd = &cobra.Command{
	Use:   "verify-attestation <file>",
	Short: "Check a shared attestation against the signing key and the ledger",
	Long: `Read an attestation as returned by the share endpoint (use - for stdin),
check its signature and compare it with the ledger entry.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttestationVerify,
}

func init() {
	achievementCmd.AddCommand(achievementVerifyCmd)
	achievementCmd.AddCommand(attestationVerifyCmd)
	rootCmd.AddCommand(achievementCmd)
}

func runAchievementVerify(cmd *cobra.Command, args []string) error {
	id, err := progress.ParseAchievementID(args[0])
	if err != nil {
		return fmt.Errorf("invalid achievement id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	dto, err := query.NewVerifyAchievementHandler(postgres.NewLedgerRepository(conn.Pool())).Handle(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return fmt.Errorf("achievement %d does not exist", id)
		}
		return err
	}

	if jsonOut {
		return printJSON(dto)
	}
	w := newTable()
	fmt.Fprintf(w, "ID\t%d\n", dto.ID)
	fmt.Fprintf(w, "OWNER\t%s\n", dto.Owner)
	fmt.Fprintf(w, "CATEGORY\t%s\n", dto.Category)
	fmt.Fprintf(w, "MILESTONE\t%d\n", dto.Milestone)
	fmt.Fprintf(w, "DESCRIPTION\t%s\n", dto.Description)
	fmt.Fprintf(w, "AWARDED AT\t%s\n", dto.AwardedAt.Format("2006-01-02 15:04:05 MST"))
	return w.Flush()
}

func runAttestationVerify(cmd *cobra.Command, args []string) error {
	att, err := readAttestation(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	key := cfg.SigningKey()
	if key == nil || !cfg.Features.IsEnabled(config.FeatureAttestationSigning) {
		return fmt.Errorf("attestation signing is not configured")
	}
	signer, err := signing.NewBlake2bSigner(key)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	verdict, err := query.NewVerifyAttestationHandler(postgres.NewLedgerRepository(conn.Pool()), signer).Handle(ctx, att)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(verdict)
	}
	if !verdict.Valid {
		return fmt.Errorf("attestation %s is not valid: %s", att.ID, verdict.Reason)
	}
	fmt.Printf("Attestation %s is valid: %s shared %s/%d with group %d\n",
		att.ID, att.UserID, att.Category, att.Milestone, att.GroupID)
	return nil
}

func readAttestation(path string) (sharing.Attestation, error) {
	var att sharing.Attestation
	in := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return att, err
		}
		defer f.Close()
		in = f
	}
	if err := json.NewDecoder(in).Decode(&att); err != nil {
		return att, fmt.Errorf("failed to decode attestation: %w", err)
	}
	return att, nil
}
