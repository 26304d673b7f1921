package model

import (
	"fmt"

	"github.com/google/uuid"
)

// CarcasseStatus defines the lifecycle status of a carcass. It is always
// derived from the carcass fields, never stored as a source of truth.
type CarcasseStatus string

const (
	// StatusManquante represents a carcass flagged missing
	StatusManquante CarcasseStatus = "MANQUANTE"
	// StatusTraitementAssainissant represents a carcass sent to sanitizing treatment
	StatusTraitementAssainissant CarcasseStatus = "TRAITEMENT_ASSAINISSANT"
	// StatusSaisiePartielle represents a partial seizure
	StatusSaisiePartielle CarcasseStatus = "SAISIE_PARTIELLE"
	// StatusSaisieTotale represents a total seizure
	StatusSaisieTotale CarcasseStatus = "SAISIE_TOTALE"
	// StatusLeveeDeConsigne represents a consignment that has been lifted
	StatusLeveeDeConsigne CarcasseStatus = "LEVEE_DE_CONSIGNE"
	// StatusConsigne represents a carcass under consignment
	StatusConsigne CarcasseStatus = "CONSIGNE"
	// StatusAccepte represents an accepted carcass
	StatusAccepte CarcasseStatus = "ACCEPTE"
	// StatusSansDecision represents a carcass awaiting an inspection decision
	StatusSansDecision CarcasseStatus = "SANS_DECISION"
)

// StatusFromString converts a string to a CarcasseStatus
func StatusFromString(status string) CarcasseStatus {
	switch status {
	case "MANQUANTE":
		return StatusManquante
	case "TRAITEMENT_ASSAINISSANT":
		return StatusTraitementAssainissant
	case "SAISIE_PARTIELLE":
		return StatusSaisiePartielle
	case "SAISIE_TOTALE":
		return StatusSaisieTotale
	case "LEVEE_DE_CONSIGNE":
		return StatusLeveeDeConsigne
	case "CONSIGNE":
		return StatusConsigne
	case "ACCEPTE":
		return StatusAccepte
	default:
		return StatusSansDecision
	}
}

// intermediaireNamespace seeds deterministic hop identities
var intermediaireNamespace = uuid.MustParse("7b0dfa1a-32c8-4a8f-9c4d-6d1e60d6a2af")

// IntermediaireID derives the deterministic identity of a custody hop from its
// composite business key, so that repeated offline submissions of the same hop
// upsert rather than duplicate.
func IntermediaireID(ficheID, actorOrOrgID string, sequence int) string {
	key := fmt.Sprintf("%s:%s:%d", ficheID, actorOrOrgID, sequence)
	return uuid.NewSHA1(intermediaireNamespace, []byte(key)).String()
}
