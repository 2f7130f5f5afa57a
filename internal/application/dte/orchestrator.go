package dte

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mercadolocal-sv/dte-engine/internal/application/dto"
	"github.com/mercadolocal-sv/dte-engine/internal/domain"
	domdte "github.com/mercadolocal-sv/dte-engine/internal/domain/dte"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/repository"
	"github.com/mercadolocal-sv/dte-engine/internal/infrastructure/hacienda"
	pkgdte "github.com/mercadolocal-sv/dte-engine/pkg/dte"
)

// transmitTimeout techo de una transmisión completa (firma + envío + commit).
const transmitTimeout = 90 * time.Second

// Orchestrator es el único punto de entrada de toda transición del ciclo de
// vida DTE: valida con las reglas puras del dominio, construye el payload,
// transmite al MH y persiste el desenlace de forma atómica. Ningún otro
// componente muta un Document.
//
// El desenlace NO_DISPONIBLE es el único re-intentable, y solo mediante una
// acción humana explícita de contingencia o duplicación: el MH exige que los
// documentos en contingencia se reporten con motivo y ventana declarados, por
// lo que no hay reintentos automáticos.
type Orchestrator struct {
	txRunner    TxRunner
	docRepo     repository.DocumentRepository
	saleRepo    repository.SaleRepository
	transmitter hacienda.Transmitter
	builder     *hacienda.PayloadBuilder
	locker      DocumentLocker
	notifier    Notifier
	emitter     hacienda.EmitterConfig
	log         zerolog.Logger
}

// NewOrchestrator construye el orquestador con todas sus dependencias.
// notifier puede ser nil (sin notificaciones).
func NewOrchestrator(
	txRunner TxRunner,
	docRepo repository.DocumentRepository,
	saleRepo repository.SaleRepository,
	transmitter hacienda.Transmitter,
	builder *hacienda.PayloadBuilder,
	locker DocumentLocker,
	notifier Notifier,
	emitter hacienda.EmitterConfig,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		txRunner:    txRunner,
		docRepo:     docRepo,
		saleRepo:    saleRepo,
		transmitter: transmitter,
		builder:     builder,
		locker:      locker,
		notifier:    notifier,
		emitter:     emitter,
		log:         log,
	}
}

// Submit crea el documento solicitado en PENDIENTE y lo transmite al MH por
// la vía normal. Para notas, el documento enmendado se lee con bloqueo de
// fila dentro de la transacción de creación: ninguna transición se decide
// sobre una foto vieja del documento de referencia.
func (o *Orchestrator) Submit(ctx context.Context, in dto.SubmitDTERequest) (*entity.Document, error) {
	var doc *entity.Document

	switch in.TipoDte {
	case entity.TipoFacturaConsumidor, entity.TipoCreditoFiscal, entity.TipoFSE:
		sale, err := o.saleRepo.GetByID(ctx, in.SaleID)
		if err != nil {
			return nil, fmt.Errorf("consultar venta: %w", err)
		}
		if sale == nil {
			return nil, fmt.Errorf("%w: venta %s", domain.ErrNotFound, in.SaleID)
		}
		doc, err = entity.NewInvoice(in.TipoDte, sale.ID, sale.Total)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidacion, err)
		}
		if err := o.docRepo.Create(ctx, doc); err != nil {
			return nil, fmt.Errorf("persistir documento: %w", err)
		}

	case entity.TipoNotaCredito, entity.TipoNotaDebito:
		err := o.txRunner.Run(ctx, func(docs repository.DocumentRepository) error {
			target, err := docs.GetForUpdate(ctx, in.RelatedDocumentID)
			if err != nil {
				return fmt.Errorf("consultar documento enmendado: %w", err)
			}
			if err := domdte.CanCreateNote(target, in.TipoDte, in.Monto); err != nil {
				return err
			}
			var cerr error
			if in.TipoDte == entity.TipoNotaCredito {
				doc, cerr = entity.NewCreditNote(target.ID, in.Monto)
			} else {
				doc, cerr = entity.NewDebitNote(target.ID, in.Monto)
			}
			if cerr != nil {
				return fmt.Errorf("%w: %v", domain.ErrValidacion, cerr)
			}
			return docs.Create(ctx, doc)
		})
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: tipo de DTE no emitible %q", domain.ErrValidacion, in.TipoDte)
	}

	return o.Emit(ctx, doc.ID)
}

// Invalidate crea el evento de invalidación del documento indicado y lo
// transmite. El documento anulado nunca cambia de estado: la anulación queda
// como registro aparte, discoverable vía FindInvalidationFor.
func (o *Orchestrator) Invalidate(ctx context.Context, targetID string, in dto.InvalidateRequest) (*entity.Document, error) {
	var event *entity.Document
	err := o.txRunner.Run(ctx, func(docs repository.DocumentRepository) error {
		target, err := docs.GetForUpdate(ctx, targetID)
		if err != nil {
			return fmt.Errorf("consultar documento a anular: %w", err)
		}
		existing, err := docs.FindInvalidationFor(ctx, targetID)
		if err != nil {
			return fmt.Errorf("buscar invalidación previa: %w", err)
		}
		if err := domdte.CanInvalidate(target, existing); err != nil {
			return err
		}
		event, err = entity.NewInvalidationEvent(targetID, in.Motivo,
			toParty(in.Responsable), toParty(in.Solicitante))
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidacion, err)
		}
		return docs.Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	return o.Emit(ctx, event.ID)
}

// Emit transmite un documento existente en PENDIENTE o CONTINGENCIA. Es la vía
// de los duplicados de contingencia y de los eventos recién creados.
//
// Garantiza a lo sumo una transmisión en vuelo por documento: el segundo
// caller concurrente recibe domain.ErrConflicto. El candado se libera en todo
// camino de salida. La transmisión y la persistencia del desenlace corren
// sobre un contexto desacoplado de la cancelación del caller: abandonar la
// espera HTTP nunca aborta el intento en curso (evita estado partido entre
// el MH y la base local).
func (o *Orchestrator) Emit(ctx context.Context, documentID string) (*entity.Document, error) {
	release, ok, err := o.locker.TryAcquire(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("adquirir candado de transmisión: %w", err)
	}
	if !ok {
		return nil, domain.ErrConflicto
	}
	defer release()

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), transmitTimeout)
	defer cancel()

	doc, err := o.docRepo.GetByID(tctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("consultar documento: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: documento %s", domain.ErrNotFound, documentID)
	}
	if doc.Estado != entity.EstadoPendiente && doc.Estado != entity.EstadoContingencia {
		return nil, fmt.Errorf("%w: el documento está %s, solo se transmite desde PENDIENTE o CONTINGENCIA",
			domain.ErrValidacion, doc.Estado)
	}
	if err := domdte.CanEmitContingency(doc); err != nil {
		return nil, err
	}

	if doc.NumeroControl == "" {
		if err := o.assignControlNumber(tctx, doc); err != nil {
			return nil, err
		}
	}

	sale, related, err := o.payloadContext(tctx, doc)
	if err != nil {
		return nil, err
	}

	modo := hacienda.ModoNormal
	if doc.TipoDte == entity.TipoContingencia {
		modo = hacienda.ModoContingencia
	}
	payload, err := o.builder.Build(doc, sale, related, modo)
	if err != nil {
		return nil, fmt.Errorf("construir payload: %w", err)
	}

	result, err := o.transmitter.Transmit(tctx, payload, modo)
	if err != nil {
		return nil, fmt.Errorf("transmitir: %w", err)
	}

	if err := o.applyOutcome(tctx, doc, result); err != nil {
		return nil, err
	}

	o.log.Info().
		Str("document_id", doc.ID).
		Str("tipo_dte", doc.TipoDte).
		Str("estado", doc.Estado).
		Str("codigo_generacion", doc.CodigoGeneracion).
		Msg("transición de documento finalizada")

	if o.notifier != nil {
		notified := *doc
		go o.notifier.DocumentTransitioned(&notified)
	}
	return doc, nil
}

// assignControlNumber reserva el correlativo de la serie y fija el número de
// control, una sola vez por documento (se reutiliza en retransmisiones).
func (o *Orchestrator) assignControlNumber(ctx context.Context, doc *entity.Document) error {
	return o.txRunner.Run(ctx, func(docs repository.DocumentRepository) error {
		seq, err := docs.NextControlSequence(ctx, doc.TipoDte)
		if err != nil {
			return fmt.Errorf("correlativo de serie: %w", err)
		}
		nc, err := pkgdte.FormatNumeroControl(doc.TipoDte, o.emitter.CodEstable, o.emitter.CodPuntoVenta, seq)
		if err != nil {
			return err
		}
		doc.NumeroControl = nc
		doc.UpdatedAt = time.Now()
		return docs.Update(ctx, doc)
	})
}

// payloadContext reúne la venta y los documentos relacionados que el builder
// necesita según el tipo de documento.
func (o *Orchestrator) payloadContext(ctx context.Context, doc *entity.Document) (*entity.Sale, []*entity.Document, error) {
	switch doc.TipoDte {
	case entity.TipoFacturaConsumidor, entity.TipoCreditoFiscal, entity.TipoFSE:
		sale, err := o.saleRepo.GetByID(ctx, doc.SaleID)
		if err != nil {
			return nil, nil, fmt.Errorf("consultar venta: %w", err)
		}
		if sale == nil {
			return nil, nil, fmt.Errorf("%w: venta %s", domain.ErrNotFound, doc.SaleID)
		}
		return sale, nil, nil

	case entity.TipoNotaCredito, entity.TipoNotaDebito, entity.TipoInvalidacion:
		target, err := o.docRepo.GetByID(ctx, doc.RelatedDocumentID)
		if err != nil {
			return nil, nil, fmt.Errorf("consultar documento relacionado: %w", err)
		}
		if target == nil {
			return nil, nil, fmt.Errorf("%w: documento relacionado %s", domain.ErrNotFound, doc.RelatedDocumentID)
		}
		return nil, []*entity.Document{target}, nil

	case entity.TipoContingencia:
		ids, err := o.docRepo.GetContingencyItems(ctx, doc.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("consultar ítems de contingencia: %w", err)
		}
		related := make([]*entity.Document, 0, len(ids))
		for _, id := range ids {
			item, err := o.docRepo.GetByID(ctx, id)
			if err != nil {
				return nil, nil, fmt.Errorf("consultar documento reportado %s: %w", id, err)
			}
			if item == nil {
				return nil, nil, fmt.Errorf("%w: documento reportado %s", domain.ErrNotFound, id)
			}
			related = append(related, item)
		}
		return nil, related, nil
	}
	return nil, nil, nil
}

// applyOutcome persiste el desenlace de la transmisión de forma atómica.
// CodigoGeneracion y SelloRecepcion se fijan juntos y solo aquí; el índice
// único sobre codigo_generacion convierte un duplicado en ErrIntegridad.
func (o *Orchestrator) applyOutcome(ctx context.Context, doc *entity.Document, result *hacienda.ReceptionResult) error {
	return o.txRunner.Run(ctx, func(docs repository.DocumentRepository) error {
		fresh, err := docs.GetForUpdate(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("releer documento: %w", err)
		}
		if fresh == nil {
			return fmt.Errorf("%w: documento %s", domain.ErrNotFound, doc.ID)
		}

		switch result.Resultado {
		case hacienda.ResultadoAceptado:
			fresh.Estado = entity.EstadoProcesado
			fresh.CodigoGeneracion = result.CodigoGeneracion
			fresh.SelloRecepcion = result.SelloRecibido
			fresh.RespuestaMH = result.Respuesta
			fresh.Observaciones = nil
			if fresh.TipoDte == entity.TipoContingencia {
				ids, err := docs.GetContingencyItems(ctx, fresh.ID)
				if err != nil {
					return fmt.Errorf("ítems de contingencia: %w", err)
				}
				if err := docs.MarkReported(ctx, ids, fresh.ID); err != nil {
					return fmt.Errorf("cerrar documentos reportados: %w", err)
				}
			}

		case hacienda.ResultadoRechazado:
			// Terminal para esta instancia: un rechazo es un error de negocio
			// del lado del MH, no una falla transitoria. Continuar exige un
			// documento nuevo.
			fresh.Estado = entity.EstadoRechazado
			fresh.Observaciones = result.Observaciones
			fresh.RespuestaMH = result.Respuesta

		case hacienda.ResultadoNoDisponible:
			fresh.Estado = entity.EstadoContingencia
			fresh.RespuestaMH = result.Respuesta
			o.log.Warn().
				Str("document_id", fresh.ID).
				Str("motivo", result.Motivo).
				Msg("MH no disponible, documento en contingencia")

		default:
			return fmt.Errorf("resultado de transmisión desconocido %q", result.Resultado)
		}

		fresh.UpdatedAt = time.Now()
		if err := docs.Update(ctx, fresh); err != nil {
			return err
		}
		*doc = *fresh
		return nil
	})
}

// GetDocument lee un documento por ID.
func (o *Orchestrator) GetDocument(ctx context.Context, id string) (*entity.Document, error) {
	doc, err := o.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: documento %s", domain.ErrNotFound, id)
	}
	return doc, nil
}

// ListDocuments lista documentos con filtros de estado y tipo.
func (o *Orchestrator) ListDocuments(ctx context.Context, filter repository.DocumentFilter) ([]*entity.Document, error) {
	return o.docRepo.List(ctx, filter)
}

func toParty(p dto.PartyDTO) entity.Party {
	return entity.Party{
		Nombre:          p.Nombre,
		TipoDocumento:   p.TipoDocumento,
		NumeroDocumento: p.NumeroDocumento,
	}
}
