package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/obrasai/vigia/pkg/model"
)

// SlackNotifier sends alert events to a Slack webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, event Event) error {
	color := "#36a64f" // green
	switch event.Alerta.TipoAlerta {
	case model.SeverityLow:
		color = "#ffcc00" // yellow
	case model.SeverityMedium:
		color = "#ff9900" // orange
	case model.SeverityHigh:
		color = "#ff0000" // red
	case model.SeverityCritical:
		color = "#cc0000" // dark red
	}

	title := fmt.Sprintf("Vigia: desvio %s", event.Alerta.TipoAlerta)
	if !event.Novo {
		title += " (atualizado)"
	}

	escopo := "geral"
	if event.Alerta.Categoria != model.ScopeOverall {
		escopo = event.Alerta.Categoria
	}

	payload := slackPayload{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color: color,
				Title: title,
				Fields: []slackField{
					{Title: "Obra", Value: event.ObraNome, Short: true},
					{Title: "Escopo", Value: escopo, Short: true},
					{Title: "Orçado", Value: fmt.Sprintf("R$ %.2f", event.Alerta.ValorOrcado), Short: true},
					{Title: "Realizado", Value: fmt.Sprintf("R$ %.2f", event.Alerta.ValorRealizado), Short: true},
					{Title: "Desvio", Value: fmt.Sprintf("%.1f%%", event.Alerta.PercentualDesvio), Short: true},
				},
				Footer: "Vigia",
				Ts:     time.Now().Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
