package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/obrasai/vigia/pkg/model"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a deviation sweep over all active projects",
	RunE:  runSweep,
}

var calcCmd = &cobra.Command{
	Use:   "calc <obra-id>",
	Short: "Calculate deviations for a single project",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalc,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(calcCmd)

	calcCmd.Flags().StringP("tenant", "t", "", "Tenant that owns the project")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orchestrator, _, _, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := orchestrator.RunForEligible(cmd.Context(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("run sweep: %w", err)
	}

	fmt.Printf("Varredura concluída em %s:\n", summary.Duration.Round(time.Millisecond))
	fmt.Printf("  Obras processadas:  %d\n", summary.Attempted)
	fmt.Printf("  Sucesso:            %d\n", summary.Succeeded)
	fmt.Printf("  Falhas:             %d\n", summary.Failed)
	fmt.Printf("  Alertas gerados:    %d\n", summary.AlertsCreated)
	fmt.Printf("  Alertas resolvidos: %d\n", summary.AlertsResolved)

	for _, e := range summary.Errors {
		fmt.Printf("  ERRO obra %s: %s\n", e.ObraID, e.Err)
	}

	return nil
}

func runCalc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tenant, _ := cmd.Flags().GetString("tenant")

	orchestrator, _, _, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := orchestrator.RunForObra(cmd.Context(), args[0], tenant, model.TriggerManual)
	if err != nil {
		return fmt.Errorf("calculate deviations: %w", err)
	}

	printScope("GERAL", run.Result.Geral)
	for _, dev := range run.Result.PorCategoria {
		printScope(dev.Categoria, dev)
	}

	if len(run.Result.MissingCategories) > 0 {
		fmt.Printf("\nCategorias sem orçamento (ignoradas): %v\n", run.Result.MissingCategories)
	}

	fmt.Printf("\nAlertas gerados: %d, resolvidos: %d\n", run.AlertsCreated, run.AlertsResolved)
	return nil
}

func printScope(label string, dev model.ScopeDeviation) {
	pct := fmt.Sprintf("%+.2f%%", dev.Percentual)
	if dev.Unbounded {
		pct = "sem orçamento"
	}
	fmt.Printf("  %-20s orçado R$%.2f  realizado R$%.2f  desvio %s\n",
		label, dev.ValorOrcado, dev.ValorRealizado, pct)
}
