package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mercadolocal-sv/dte-engine/internal/domain"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository sobre PostgreSQL
// (usable con pool o tx). Los documentos nunca se borran.
//
// La tabla documents lleva dos índices únicos que sostienen invariantes del
// dominio: uno parcial sobre codigo_generacion (WHERE codigo_generacion IS NOT
// NULL) y uno parcial sobre related_document_id para eventos de invalidación
// (WHERE tipo_dte = 'invalidacion'). Sus violaciones se mapean a
// domain.ErrIntegridad.
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

const documentColumns = `
	id, tipo_dte, estado, codigo_generacion, numero_control, sello_recepcion,
	respuesta_mh, observaciones, monto, sale_id, related_document_id,
	motivo_invalidacion,
	responsable_nombre, responsable_tipo_doc, responsable_num_doc,
	solicitante_nombre, solicitante_tipo_doc, solicitante_num_doc,
	motivo_contingencia, descripcion_motivo, contingencia_desde, contingencia_hasta,
	reported_count, contingency_event_id, created_at, updated_at`

// Create inserta el documento. Un choque con los índices únicos sale como
// domain.ErrIntegridad.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`
	_, err := r.q.Exec(ctx, query, documentArgs(doc)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrIntegridad, err)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Update reescribe los campos mutables del ciclo de vida. La identidad
// (id, tipo_dte, sale_id, related_document_id) no cambia nunca.
func (r *DocumentRepo) Update(ctx context.Context, doc *entity.Document) error {
	query := `
		UPDATE documents
		SET estado               = $2,
		    codigo_generacion    = $3,
		    numero_control       = $4,
		    sello_recepcion      = $5,
		    respuesta_mh         = $6,
		    observaciones        = $7,
		    contingency_event_id = $8,
		    updated_at           = $9
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		doc.ID,
		doc.Estado,
		nullIfEmpty(doc.CodigoGeneracion),
		nullIfEmpty(doc.NumeroControl),
		nullIfEmpty(doc.SelloRecepcion),
		nullIfEmpty(doc.RespuestaMH),
		doc.Observaciones,
		nullIfEmpty(doc.ContingencyEventID),
		doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrIntegridad, err)
		}
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: documento %s", domain.ErrNotFound, doc.ID)
	}
	return nil
}

// GetByID obtiene un documento; nil si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetForUpdate lee el documento con bloqueo de fila. Solo dentro de una tx.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, id string) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

// List lista documentos con filtros opcionales de estado y tipo, más recientes
// primero.
func (r *DocumentRepo) List(ctx context.Context, filter repository.DocumentFilter) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE 1=1`
	args := []any{}
	if filter.Estado != "" {
		args = append(args, filter.Estado)
		query += fmt.Sprintf(" AND estado = $%d", len(args))
	}
	if filter.TipoDte != "" {
		args = append(args, filter.TipoDte)
		query += fmt.Sprintf(" AND tipo_dte = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.list(ctx, query, args...)
}

// FindInvalidationFor busca el evento de invalidación del documento; nil si
// nunca fue invalidado.
func (r *DocumentRepo) FindInvalidationFor(ctx context.Context, targetID string) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents
		WHERE tipo_dte = $1 AND related_document_id = $2`
	return r.getOne(ctx, query, entity.TipoInvalidacion, targetID)
}

// ListPendingContingency lista los documentos en CONTINGENCIA aún sin cerrar
// por un reporte aceptado. Los propios eventos de contingencia no se reportan
// a sí mismos y quedan fuera.
func (r *DocumentRepo) ListPendingContingency(ctx context.Context) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents
		WHERE estado = $1 AND contingency_event_id IS NULL AND tipo_dte <> $2
		ORDER BY created_at`
	return r.list(ctx, query, entity.EstadoContingencia, entity.TipoContingencia)
}

// NextControlSequence reserva el siguiente correlativo de la serie del tipo de
// documento. El upsert es atómico: dos emisores concurrentes nunca obtienen el
// mismo número.
func (r *DocumentRepo) NextControlSequence(ctx context.Context, tipoDte string) (int64, error) {
	query := `
		INSERT INTO control_sequences (tipo_dte, ultimo)
		VALUES ($1, 1)
		ON CONFLICT (tipo_dte) DO UPDATE SET ultimo = control_sequences.ultimo + 1
		RETURNING ultimo`
	var seq int64
	if err := r.q.QueryRow(ctx, query, tipoDte).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next control sequence: %w", err)
	}
	return seq, nil
}

// AddContingencyItems registra los documentos cubiertos por un evento.
func (r *DocumentRepo) AddContingencyItems(ctx context.Context, eventID string, docIDs []string) error {
	query := `
		INSERT INTO contingency_items (event_id, document_id)
		SELECT $1, unnest($2::text[])`
	if _, err := r.q.Exec(ctx, query, eventID, docIDs); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrIntegridad, err)
		}
		return fmt.Errorf("insert contingency items: %w", err)
	}
	return nil
}

// GetContingencyItems devuelve los IDs de documentos de un evento, en el orden
// en que fueron agregados.
func (r *DocumentRepo) GetContingencyItems(ctx context.Context, eventID string) ([]string, error) {
	query := `SELECT document_id FROM contingency_items WHERE event_id = $1 ORDER BY seq`
	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list contingency items: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan contingency item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkReported cierra los documentos reportados apuntándolos al evento que
// los cubrió.
func (r *DocumentRepo) MarkReported(ctx context.Context, docIDs []string, eventID string) error {
	query := `
		UPDATE documents
		SET contingency_event_id = $1, updated_at = now()
		WHERE id = ANY($2::text[])`
	if _, err := r.q.Exec(ctx, query, eventID, docIDs); err != nil {
		return fmt.Errorf("mark reported: %w", err)
	}
	return nil
}

func (r *DocumentRepo) getOne(ctx context.Context, query string, args ...any) (*entity.Document, error) {
	doc, err := scanDocument(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Document, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var list []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		list = append(list, doc)
	}
	return list, rows.Err()
}

func documentArgs(doc *entity.Document) []any {
	var respNombre, respTipo, respNum *string
	if doc.Responsable != nil {
		respNombre, respTipo, respNum = &doc.Responsable.Nombre, &doc.Responsable.TipoDocumento, &doc.Responsable.NumeroDocumento
	}
	var soliNombre, soliTipo, soliNum *string
	if doc.Solicitante != nil {
		soliNombre, soliTipo, soliNum = &doc.Solicitante.Nombre, &doc.Solicitante.TipoDocumento, &doc.Solicitante.NumeroDocumento
	}
	var desde, hasta *time.Time
	if !doc.ContingenciaDesde.IsZero() {
		desde = &doc.ContingenciaDesde
	}
	if !doc.ContingenciaHasta.IsZero() {
		hasta = &doc.ContingenciaHasta
	}
	return []any{
		doc.ID, doc.TipoDte, doc.Estado,
		nullIfEmpty(doc.CodigoGeneracion), nullIfEmpty(doc.NumeroControl), nullIfEmpty(doc.SelloRecepcion),
		nullIfEmpty(doc.RespuestaMH), doc.Observaciones, doc.Monto,
		nullIfEmpty(doc.SaleID), nullIfEmpty(doc.RelatedDocumentID),
		nullIfEmpty(doc.MotivoInvalidacion),
		respNombre, respTipo, respNum,
		soliNombre, soliTipo, soliNum,
		doc.MotivoContingencia, nullIfEmpty(doc.DescripcionMotivo), desde, hasta,
		doc.ReportedCount, nullIfEmpty(doc.ContingencyEventID),
		doc.CreatedAt, doc.UpdatedAt,
	}
}

type pgxScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row pgxScanner) (*entity.Document, error) {
	var doc entity.Document
	var codigo, numero, sello, respuesta, saleID, relatedID, motivoInv *string
	var respNombre, respTipo, respNum *string
	var soliNombre, soliTipo, soliNum *string
	var descMotivo, eventID *string
	var desde, hasta *time.Time
	err := row.Scan(
		&doc.ID, &doc.TipoDte, &doc.Estado, &codigo, &numero, &sello,
		&respuesta, &doc.Observaciones, &doc.Monto, &saleID, &relatedID,
		&motivoInv,
		&respNombre, &respTipo, &respNum,
		&soliNombre, &soliTipo, &soliNum,
		&doc.MotivoContingencia, &descMotivo, &desde, &hasta,
		&doc.ReportedCount, &eventID, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.CodigoGeneracion = derefStr(codigo)
	doc.NumeroControl = derefStr(numero)
	doc.SelloRecepcion = derefStr(sello)
	doc.RespuestaMH = derefStr(respuesta)
	doc.SaleID = derefStr(saleID)
	doc.RelatedDocumentID = derefStr(relatedID)
	doc.MotivoInvalidacion = derefStr(motivoInv)
	doc.DescripcionMotivo = derefStr(descMotivo)
	doc.ContingencyEventID = derefStr(eventID)
	if respNombre != nil {
		doc.Responsable = &entity.Party{Nombre: *respNombre, TipoDocumento: derefStr(respTipo), NumeroDocumento: derefStr(respNum)}
	}
	if soliNombre != nil {
		doc.Solicitante = &entity.Party{Nombre: *soliNombre, TipoDocumento: derefStr(soliTipo), NumeroDocumento: derefStr(soliNum)}
	}
	if desde != nil {
		doc.ContingenciaDesde = *desde
	}
	if hasta != nil {
		doc.ContingenciaHasta = *hasta
	}
	return &doc, nil
}
