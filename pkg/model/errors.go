package model

import "errors"

// Error taxonomy shared by the storage and engine layers. Callers wrap
// these with fmt.Errorf("...: %w", err) and match with errors.Is.
var (
	// ErrDataUnavailable means a project or its cost ledger could not be
	// read. Fatal to that project's pipeline only.
	ErrDataUnavailable = errors.New("dados da obra indisponíveis")

	// ErrInvalidTransition means an illegal lifecycle status change was
	// requested. State is left unchanged.
	ErrInvalidTransition = errors.New("transição de status inválida")

	// ErrConfigInvalid means a threshold configuration failed validation,
	// e.g. boundaries not strictly increasing.
	ErrConfigInvalid = errors.New("configuração de alerta inválida")

	// ErrWriteConflict means a concurrent upsert collided on the
	// one-active-alert-per-scope invariant.
	ErrWriteConflict = errors.New("conflito de escrita concorrente")

	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("registro não encontrado")
)
