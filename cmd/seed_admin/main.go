// seed_admin crea el usuario administrador inicial y, en development, una
// venta de ejemplo para probar la emisión de extremo a extremo.
//
// Uso: go run ./cmd/seed_admin <email> <password>
// La conexión a la DB se toma de la configuración habitual (DATABASE_URL, DB_HOST...).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
	"github.com/mercadolocal-sv/dte-engine/internal/infrastructure/postgres"
	"github.com/mercadolocal-sv/dte-engine/pkg/config"
	pkgdte "github.com/mercadolocal-sv/dte-engine/pkg/dte"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "uso: seed_admin <email> <password>")
		os.Exit(1)
	}
	email, password := os.Args[1], os.Args[2]
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "password debe tener al menos 8 caracteres")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conexión a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashear password: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'active', $6, $6)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at`,
		uuid.New().String(), email, string(hash), "Administrador", entity.RoleAdmin, now,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "insertar admin: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("usuario admin %s listo\n", email)

	if cfg.App.Env != "development" {
		return
	}

	// Venta de ejemplo para probar POST /api/dte sin depender del marketplace.
	saleID := uuid.New().String()
	_, err = pool.Exec(ctx, `
		INSERT INTO sales (id, provider_id, descripcion, total,
		                   cliente_nombre, cliente_tipo_doc, cliente_num_doc, cliente_correo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		saleID, uuid.New().String(), "Venta de prueba", decimal.NewFromFloat(113.00),
		"Cliente Demo", pkgdte.DocIdentDUI, "01234567-2", "cliente@example.test", now,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "insertar venta demo: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("venta demo %s creada\n", saleID)
}
