package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/obrasai/vigia/pkg/model"
)

func TestCanTransition_FromActive(t *testing.T) {
	assert.True(t, model.CanTransition(model.StatusActive, model.StatusAcknowledged))
	assert.True(t, model.CanTransition(model.StatusActive, model.StatusResolved))
	assert.True(t, model.CanTransition(model.StatusActive, model.StatusDismissed))
	assert.False(t, model.CanTransition(model.StatusActive, model.StatusActive))
}

func TestCanTransition_FromAcknowledged(t *testing.T) {
	assert.True(t, model.CanTransition(model.StatusAcknowledged, model.StatusResolved))
	assert.True(t, model.CanTransition(model.StatusAcknowledged, model.StatusDismissed))
	assert.False(t, model.CanTransition(model.StatusAcknowledged, model.StatusActive))
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, from := range []model.AlertStatus{model.StatusResolved, model.StatusDismissed} {
		for _, to := range []model.AlertStatus{
			model.StatusActive, model.StatusAcknowledged, model.StatusResolved, model.StatusDismissed,
		} {
			assert.False(t, model.CanTransition(from, to), "%s -> %s should be rejected", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, model.Terminal(model.StatusResolved))
	assert.True(t, model.Terminal(model.StatusDismissed))
	assert.False(t, model.Terminal(model.StatusActive))
	assert.False(t, model.Terminal(model.StatusAcknowledged))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, model.ValidStatus(model.StatusActive))
	assert.False(t, model.ValidStatus("PENDENTE"))
	assert.False(t, model.ValidStatus(""))
}

func TestValidSeverity(t *testing.T) {
	assert.True(t, model.ValidSeverity(model.SeverityCritical))
	assert.False(t, model.ValidSeverity("URGENTE"))
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, model.DefaultThresholds().Validate())

	// out of order
	bad := model.Thresholds{Baixo: 15, Medio: 5, Alto: 25, Critico: 40}
	err := bad.Validate()
	assert.ErrorIs(t, err, model.ErrConfigInvalid)

	// non-positive base
	bad = model.Thresholds{Baixo: 0, Medio: 15, Alto: 25, Critico: 40}
	assert.ErrorIs(t, bad.Validate(), model.ErrConfigInvalid)

	// equal boundaries are invalid, ordering is strict
	bad = model.Thresholds{Baixo: 5, Medio: 5, Alto: 25, Critico: 40}
	assert.ErrorIs(t, bad.Validate(), model.ErrConfigInvalid)
}

func TestAlertConfig_Validate(t *testing.T) {
	cfg := model.DefaultAlertConfig("obra-1")
	assert.NoError(t, cfg.Validate())

	cfg.ObraID = ""
	assert.ErrorIs(t, cfg.Validate(), model.ErrConfigInvalid)
}

func TestDeviationResult_Partial(t *testing.T) {
	r := &model.DeviationResult{}
	assert.False(t, r.Partial())

	r.MissingCategories = []string{"eletrica"}
	assert.True(t, r.Partial())
}
