package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/obrasai/vigia/pkg/model"
)

var alertasCmd = &cobra.Command{
	Use:   "alertas",
	Short: "Inspect and manage deviation alerts",
}

var alertasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE:  runAlertasList,
}

var alertasStatusCmd = &cobra.Command{
	Use:   "status <alerta-id> <novo-status>",
	Short: "Change an alert's lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE:  runAlertasStatus,
}

var alertasVerCmd = &cobra.Command{
	Use:   "ver <alerta-id> [alerta-id...]",
	Short: "Mark active alerts as viewed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAlertasVer,
}

func init() {
	rootCmd.AddCommand(alertasCmd)
	alertasCmd.AddCommand(alertasListCmd)
	alertasCmd.AddCommand(alertasStatusCmd)
	alertasCmd.AddCommand(alertasVerCmd)

	alertasListCmd.Flags().StringP("obra", "o", "", "Filter by project id")
	alertasListCmd.Flags().StringP("status", "s", "", "Filter by status (ATIVO, VISUALIZADO, RESOLVIDO, IGNORADO)")
	alertasListCmd.Flags().StringP("tipo", "t", "", "Filter by severity (BAIXO, MEDIO, ALTO, CRITICO)")
}

func runAlertasList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	obraID, _ := cmd.Flags().GetString("obra")
	status, _ := cmd.Flags().GetString("status")
	tipo, _ := cmd.Flags().GetString("tipo")

	filter := model.AlertFilter{ObraID: obraID}
	if status != "" {
		if !model.ValidStatus(model.AlertStatus(status)) {
			return fmt.Errorf("status desconhecido: %s", status)
		}
		filter.Status = []model.AlertStatus{model.AlertStatus(status)}
	}
	if tipo != "" {
		if !model.ValidSeverity(model.Severity(tipo)) {
			return fmt.Errorf("tipo_alerta desconhecido: %s", tipo)
		}
		filter.TipoAlerta = []model.Severity{model.Severity(tipo)}
	}

	_, lifecycle, _, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	alerts, err := lifecycle.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	if len(alerts) == 0 {
		fmt.Println("Nenhum alerta encontrado.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tOBRA\tCATEGORIA\tTIPO\tDESVIO\tSTATUS\tCRIADO\n")
	for _, a := range alerts {
		categoria := a.Categoria
		if categoria == "" {
			categoria = "GERAL"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%+.2f%%\t%s\t%s\n",
			a.ID, a.ObraNome, categoria, a.TipoAlerta,
			a.PercentualDesvio, a.Status, a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	return nil
}

func runAlertasStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, lifecycle, _, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := lifecycle.Transition(cmd.Context(), args[0], model.AlertStatus(args[1])); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	fmt.Printf("Alerta %s agora está %s\n", args[0], args[1])
	return nil
}

func runAlertasVer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, lifecycle, _, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	updated, err := lifecycle.Acknowledge(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("mark viewed: %w", err)
	}

	fmt.Printf("%d alerta(s) marcado(s) como visualizado(s)\n", updated)
	return nil
}
