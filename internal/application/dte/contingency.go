package dte

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mercadolocal-sv/dte-engine/internal/application/dto"
	"github.com/mercadolocal-sv/dte-engine/internal/domain"
	domdte "github.com/mercadolocal-sv/dte-engine/internal/domain/dte"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/repository"
)

// ContingencyCoordinator agrupa documentos varados en CONTINGENCIA en eventos
// de contingencia y gestiona su reenvío. No transmite por sí mismo: toda
// transmisión pasa por el Orchestrator.
type ContingencyCoordinator struct {
	txRunner TxRunner
	docRepo  repository.DocumentRepository
	orch     *Orchestrator
	log      zerolog.Logger
}

func NewContingencyCoordinator(txRunner TxRunner, docRepo repository.DocumentRepository, orch *Orchestrator, log zerolog.Logger) *ContingencyCoordinator {
	return &ContingencyCoordinator{
		txRunner: txRunner,
		docRepo:  docRepo,
		orch:     orch,
		log:      log,
	}
}

// ListPending devuelve los documentos en CONTINGENCIA que aún no han sido
// cubiertos por ningún evento de contingencia.
func (c *ContingencyCoordinator) ListPending(ctx context.Context) ([]*entity.Document, error) {
	return c.docRepo.ListPendingContingency(ctx)
}

// CreateReport arma el evento de contingencia sobre los documentos indicados y
// lo transmite. Cada documento se relee con bloqueo de fila: tiene que seguir
// en CONTINGENCIA y sin evento previo al momento de armar el reporte, no al
// momento en que el operador lo seleccionó.
func (c *ContingencyCoordinator) CreateReport(ctx context.Context, in dto.ContingencyReportRequest) (*entity.Document, error) {
	if len(in.DocumentIDs) == 0 {
		return nil, fmt.Errorf("%w: el reporte de contingencia exige al menos un documento", domain.ErrValidacion)
	}

	var event *entity.Document
	err := c.txRunner.Run(ctx, func(docs repository.DocumentRepository) error {
		for _, id := range in.DocumentIDs {
			item, err := docs.GetForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("consultar documento %s: %w", id, err)
			}
			if item == nil {
				return fmt.Errorf("%w: documento %s", domain.ErrNotFound, id)
			}
			if item.Estado != entity.EstadoContingencia {
				return fmt.Errorf("%w: el documento %s está %s, solo se reportan documentos en CONTINGENCIA",
					domain.ErrValidacion, id, item.Estado)
			}
			if item.ContingencyEventID != "" {
				return fmt.Errorf("%w: el documento %s ya fue reportado en el evento %s",
					domain.ErrValidacion, id, item.ContingencyEventID)
			}
		}

		var cerr error
		event, cerr = entity.NewContingencyEvent(in.DocumentIDs,
			entity.ContingencyWindow{Desde: in.Desde, Hasta: in.Hasta},
			in.Motivo, in.Descripcion, toParty(in.Responsable))
		if cerr != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidacion, cerr)
		}
		if err := docs.Create(ctx, event); err != nil {
			return err
		}
		return docs.AddContingencyItems(ctx, event.ID, in.DocumentIDs)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("event_id", event.ID).
		Int("documentos", len(in.DocumentIDs)).
		Msg("evento de contingencia creado")

	return c.orch.Emit(ctx, event.ID)
}

// Duplicate clona un documento RECHAZADO o varado como instancia nueva en
// PENDIENTE, con identidad fresca y sin rastro del intento anterior. El
// duplicado se transmite después con Emit, como cualquier documento.
func (c *ContingencyCoordinator) Duplicate(ctx context.Context, documentID string) (*entity.Document, error) {
	original, err := c.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("consultar documento: %w", err)
	}
	if original == nil {
		return nil, fmt.Errorf("%w: documento %s", domain.ErrNotFound, documentID)
	}
	if err := domdte.CanDuplicateForContingency(original); err != nil {
		return nil, err
	}

	dup := original.Duplicate()
	if err := c.docRepo.Create(ctx, dup); err != nil {
		return nil, fmt.Errorf("persistir duplicado: %w", err)
	}

	c.log.Info().
		Str("original_id", original.ID).
		Str("duplicate_id", dup.ID).
		Msg("documento duplicado para reenvío")

	return dup, nil
}
