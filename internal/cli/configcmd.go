package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obrasai/vigia/pkg/model"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage per-project alert configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show <obra-id>",
	Short: "Show the active configuration for a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <obra-id>",
	Short: "Create or replace a project's alert configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigSet,
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <obra-id>",
	Short: "Deactivate a project's configuration (falls back to defaults)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigDelete,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configDeleteCmd)

	configSetCmd.Flags().Float64("baixo", 5, "Threshold for BAIXO (percent)")
	configSetCmd.Flags().Float64("medio", 15, "Threshold for MEDIO (percent)")
	configSetCmd.Flags().Float64("alto", 25, "Threshold for ALTO (percent)")
	configSetCmd.Flags().Float64("critico", 40, "Threshold for CRITICO (percent)")
	configSetCmd.Flags().Bool("email", true, "Send notifications on new alerts")
	configSetCmd.Flags().Bool("dashboard", true, "Show alerts on the dashboard")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ac, err := store.GetActiveAlertConfig(cmd.Context(), args[0])
	if errors.Is(err, model.ErrNotFound) {
		fmt.Println("Nenhuma configuração ativa; a obra usa os limites padrão.")
		ac = model.DefaultAlertConfig(args[0])
	} else if err != nil {
		return fmt.Errorf("get config: %w", err)
	}

	fmt.Printf("Configuração de alertas para obra %s:\n", args[0])
	fmt.Printf("  BAIXO:      %.1f%%\n", ac.Baixo)
	fmt.Printf("  MEDIO:      %.1f%%\n", ac.Medio)
	fmt.Printf("  ALTO:       %.1f%%\n", ac.Alto)
	fmt.Printf("  CRITICO:    %.1f%%\n", ac.Critico)
	fmt.Printf("  Email:      %v\n", ac.NotificarEmail)
	fmt.Printf("  Dashboard:  %v\n", ac.NotificarDashboard)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	baixo, _ := cmd.Flags().GetFloat64("baixo")
	medio, _ := cmd.Flags().GetFloat64("medio")
	alto, _ := cmd.Flags().GetFloat64("alto")
	critico, _ := cmd.Flags().GetFloat64("critico")
	email, _ := cmd.Flags().GetBool("email")
	dashboard, _ := cmd.Flags().GetBool("dashboard")

	ac := &model.AlertConfig{
		ObraID: args[0],
		Thresholds: model.Thresholds{
			Baixo:   baixo,
			Medio:   medio,
			Alto:    alto,
			Critico: critico,
		},
		NotificarEmail:     email,
		NotificarDashboard: dashboard,
		Ativo:              true,
	}

	if err := ac.Validate(); err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.SaveAlertConfig(cmd.Context(), ac)
	if errors.Is(err, model.ErrWriteConflict) {
		err = store.SaveAlertConfig(cmd.Context(), ac)
	}
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Configuração salva para obra %s (%.1f / %.1f / %.1f / %.1f)\n",
		args[0], baixo, medio, alto, critico)

	return nil
}

func runConfigDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeactivateAlertConfig(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deactivate config: %w", err)
	}

	fmt.Printf("Configuração da obra %s desativada; limites padrão em vigor.\n", args[0])
	return nil
}
