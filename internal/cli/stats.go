package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obrasai/vigia/pkg/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate alert statistics",
	RunE:  runStats,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove resolved and ignored alerts past the retention window",
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pruneCmd)

	statsCmd.Flags().StringP("obra", "o", "", "Filter by project id")
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	obraID, _ := cmd.Flags().GetString("obra")

	_, _, stats, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	est, err := stats.Estatisticas(cmd.Context(), model.StatsFilter{ObraID: obraID})
	if err != nil {
		return fmt.Errorf("aggregate stats: %w", err)
	}

	fmt.Printf("Estatísticas de alertas:\n")
	fmt.Printf("  Total:             %d\n", est.TotalAlertas)
	fmt.Printf("  Obras com alertas: %d\n", est.ObrasComAlertas)
	fmt.Printf("  Desvio médio:      %.2f%%\n", est.MediaDesvio)

	fmt.Printf("  Por tipo (ativos):\n")
	for _, tier := range []model.Severity{model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical} {
		fmt.Printf("    %-9s %d\n", tier, est.AlertasPorTipo[tier])
	}

	fmt.Printf("  Por status:\n")
	for _, st := range []model.AlertStatus{model.StatusActive, model.StatusAcknowledged, model.StatusResolved, model.StatusDismissed} {
		fmt.Printf("    %-12s %d\n", st, est.AlertasPorStatus[st])
	}

	if est.MaiorDesvio.ObraNome != "" {
		fmt.Printf("  Maior desvio: %s (%+.2f%%, R$%.2f)\n",
			est.MaiorDesvio.ObraNome, est.MaiorDesvio.Percentual, est.MaiorDesvio.Valor)
	}

	return nil
}

func runPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, lifecycle, _, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := lifecycle.Prune(cmd.Context())
	if err != nil {
		return fmt.Errorf("prune alerts: %w", err)
	}

	fmt.Printf("%d alerta(s) removido(s)\n", removed)
	return nil
}
