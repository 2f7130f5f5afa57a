package domain

import "errors"

// Errores de dominio (sin dependencias externas).
//
// El rechazo de Hacienda y la no disponibilidad del servicio NO son errores:
// son desenlaces del ciclo de vida y quedan registrados como estado del
// documento (RECHAZADO / CONTINGENCIA).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrValidacion   = errors.New("validación de negocio fallida")
	ErrConflicto    = errors.New("otra transmisión en curso para el documento")
	ErrIntegridad   = errors.New("violación de integridad del registro fiscal")
	ErrUserNotFound = errors.New("usuario no encontrado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
)
