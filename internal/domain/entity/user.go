package entity

import "time"

// Roles válidos para User en el panel administrativo.
const (
	RoleAdmin    = "admin"
	RoleOperador = "operador" // emite y da seguimiento a DTE, sin gestión de usuarios
)

// User representa un operador del panel administrativo.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Name         string
	Role         string // admin, operador
	Status       string // active, inactive
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
