package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
	redisdb "github.com/rlrepresentacoes/sigem/internal/infrastructure/db/redis"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect and approve user profiles",
}

var (
	approveID   string
	approveRole string
	showID      string
)

var profilesApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Assign a role to a profile",
	Long: `Assign a module role to a profile, typically one awaiting approval.

Live sessions of the user re-resolve their profile and move to the new module.

Roles: gerencia, vendas, recepcao, monitorias, rh, pendente

Examples:
  sigem profiles approve --id 6f1c2b0e-0d4e-4a59-9a57-0c2f7e3b9d11 --role vendas`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := domain.ParseRole(approveRole)
		if err != nil {
			return err
		}
		return withInfra(cmd.Context(), func(ctx context.Context, in *infra) error {
			bus := redisdb.NewAuthEventBus(in.redis, in.log)
			if err := approveProfile(ctx, in.profiles, bus, approveID, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile %s is now %s\n", approveID, role)
			return nil
		})
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withInfra(cmd.Context(), func(ctx context.Context, in *infra) error {
			profile, err := in.profiles.FindByID(ctx, showID)
			if err != nil {
				return err
			}
			return writeProfile(cmd.OutOrStdout(), profile)
		})
	},
}

func init() {
	profilesApproveCmd.Flags().StringVar(&approveID, "id", "", "profile (identity) id")
	profilesApproveCmd.Flags().StringVar(&approveRole, "role", "", "role to assign")
	_ = profilesApproveCmd.MarkFlagRequired("id")
	_ = profilesApproveCmd.MarkFlagRequired("role")

	profilesShowCmd.Flags().StringVar(&showID, "id", "", "profile (identity) id")
	_ = profilesShowCmd.MarkFlagRequired("id")

	profilesCmd.AddCommand(profilesApproveCmd, profilesShowCmd)
	rootCmd.AddCommand(profilesCmd)
}

func withInfra(ctx context.Context, fn func(context.Context, *infra) error) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(ctx)
	return fn(ctx, in)
}

// approveProfile sets the role and announces the change so live sessions
// of the identity re-resolve.
func approveProfile(ctx context.Context, profiles ports.ProfileRepository, bus ports.AuthEventBus, id string, role domain.Role) error {
	if err := profiles.UpdateRole(ctx, id, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	ev := domain.AuthEvent{
		Type:       domain.EventUserUpdated,
		IdentityID: id,
		Origin:     domain.OriginAdmin,
		At:         time.Now().UTC(),
	}
	if err := bus.Publish(ctx, ev); err != nil {
		return fmt.Errorf("role updated but sessions were not notified: %w", err)
	}
	return nil
}

type profileView struct {
	ID              string      `yaml:"id"`
	Email           string      `yaml:"email"`
	Name            string      `yaml:"name"`
	Role            domain.Role `yaml:"role"`
	ResponsibleName string      `yaml:"responsible_name"`
	Function        string      `yaml:"function"`
}

func writeProfile(w io.Writer, p *domain.Profile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(profileView{
		ID:              p.ID,
		Email:           p.Email,
		Name:            p.DisplayName(),
		Role:            p.Role,
		ResponsibleName: p.ResponsibleName,
		Function:        p.FunctionLabel(),
	}); err != nil {
		return err
	}
	return enc.Close()
}
