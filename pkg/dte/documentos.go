package dte

import (
	"fmt"
	"unicode"
)

// ValidateDUI valida que el DUI tenga 9 dígitos y un dígito verificador
// correcto (módulo 10 con pesos 9..2 sobre los 8 primeros dígitos).
// Acepta "01234567-8" o "012345678".
func ValidateDUI(dui string) error {
	digits := extractDigits(dui)
	if len(digits) != 9 {
		return fmt.Errorf("DUI debe tener 9 dígitos, se encontraron %d", len(digits))
	}
	expected, _ := ComputeDUIVerificationDigit(dui)
	if digits[8] != expected {
		return fmt.Errorf("dígito verificador del DUI inválido: esperado %c, recibido %c", expected, digits[8])
	}
	return nil
}

// ComputeDUIVerificationDigit calcula el dígito verificador para los 8
// primeros dígitos del DUI.
func ComputeDUIVerificationDigit(dui string) (byte, error) {
	digits := extractDigits(dui)
	if len(digits) < 8 {
		return 0, fmt.Errorf("se requieren al menos 8 dígitos, se encontraron %d", len(digits))
	}
	var sum int
	for i := 0; i < 8; i++ {
		sum += int(digits[i]-'0') * (9 - i)
	}
	return byte('0' + (10-sum%10)%10), nil
}

// ValidateNIT valida el largo del NIT salvadoreño: 14 dígitos
// (####-######-###-#), o 9 cuando el contribuyente usa su DUI como NIT
// homologado. No verifica dígito de control: el MH acepta ambas series
// históricas y la verificación final es suya.
func ValidateNIT(nit string) error {
	digits := extractDigits(nit)
	if len(digits) != 14 && len(digits) != 9 {
		return fmt.Errorf("NIT debe tener 14 dígitos (o 9 si es DUI homologado), se encontraron %d", len(digits))
	}
	return nil
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
