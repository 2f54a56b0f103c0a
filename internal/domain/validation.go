package domain

import (
	"fmt"
	"strings"
)

const (
	MinPasswordLength = 6
	MaxAdresseLength  = 255
)

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalidInput(fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères", MinPasswordLength))
	}
	return nil
}

// ValidateName rejects blank nom/prenom values.
func ValidateName(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidInput(fmt.Sprintf("Le champ %s est requis", field))
	}
	return nil
}

func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return invalidInput("Latitude invalide (entre -90 et 90)")
	}
	if lon < -180 || lon > 180 {
		return invalidInput("Longitude invalide (entre -180 et 180)")
	}
	return nil
}

func ValidateAdresse(adresse string) error {
	if len([]rune(adresse)) > MaxAdresseLength {
		return invalidInput(fmt.Sprintf("L'adresse ne doit pas dépasser %d caractères", MaxAdresseLength))
	}
	return nil
}

// ValidateNonNegative checks optional surface/budget amounts.
func ValidateNonNegative(field string, value *float64) error {
	if value != nil && *value < 0 {
		return invalidInput(fmt.Sprintf("Le champ %s doit être positif", field))
	}
	return nil
}

func (c SignalementCreate) Validate() error {
	if err := ValidateCoordinates(c.Latitude, c.Longitude); err != nil {
		return err
	}
	if err := ValidateAdresse(c.Adresse); err != nil {
		return err
	}
	return ValidateNonNegative("surfaceM2", c.SurfaceM2)
}

func (u SignalementUpdate) Validate() error {
	if u.Empty() {
		return invalidInput("Aucune donnée à mettre à jour")
	}
	if u.Adresse != nil {
		if err := ValidateAdresse(*u.Adresse); err != nil {
			return err
		}
	}
	if err := ValidateNonNegative("surfaceM2", u.SurfaceM2); err != nil {
		return err
	}
	return ValidateNonNegative("budget", u.Budget)
}
