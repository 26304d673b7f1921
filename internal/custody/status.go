package custody

import (
	"time"

	"github.com/betagouv/zacharie-sub006/internal/model"
)

// AutoAcceptAfter is the delay after which an undecided carcass handed to
// inspection is considered accepted, so items never stay stuck when
// inspectors do not close them out.
const AutoAcceptAfter = 10 * 24 * time.Hour

// Clock provides the current time. The status derivation stays pure and
// deterministic by taking its clock as an explicit dependency.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current wall-clock time
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant; test helper
type FixedClock time.Time

// Now returns the fixed instant
func (c FixedClock) Now() time.Time { return time.Time(c) }

// CarcasseStatusAt derives the lifecycle status of a carcass at the given
// instant. The priority order is deterministic, first match wins:
//  1. flagged missing
//  2. sanitizing treatment
//  3. seizure (partial when the first element is the partial marker)
//  4. consignment (lifted or still held)
//  5. auto-acceptance once the inspection delay has elapsed
//  6. no decision
func CarcasseStatusAt(carcasse *model.Carcasse, now time.Time) model.CarcasseStatus {
	if carcasse.ManquanteAt != nil {
		return model.StatusManquante
	}
	if carcasse.TraitementAssainissant != "" {
		return model.StatusTraitementAssainissant
	}
	if len(carcasse.Saisie) > 0 && carcasse.Saisie[0] != "" {
		if carcasse.Saisie[0] == model.SeizurePartial {
			return model.StatusSaisiePartielle
		}
		return model.StatusSaisieTotale
	}
	if carcasse.ConsigneAt != nil {
		if carcasse.ConsigneLeveeAt != nil {
			return model.StatusLeveeDeConsigne
		}
		return model.StatusConsigne
	}
	if carcasse.SVIAssignedToFicheAt != nil && now.Sub(*carcasse.SVIAssignedToFicheAt) > AutoAcceptAfter {
		return model.StatusAccepte
	}
	return model.StatusSansDecision
}

// CarcasseStatus derives the status using the given clock
func CarcasseStatus(carcasse *model.Carcasse, clock Clock) model.CarcasseStatus {
	return CarcasseStatusAt(carcasse, clock.Now())
}

// SaisieParts returns the seized body-part list of a partial seizure, or nil
// when the carcass is not partially seized.
func SaisieParts(carcasse *model.Carcasse) []string {
	if len(carcasse.Saisie) > 0 && carcasse.Saisie[0] == model.SeizurePartial {
		return carcasse.Saisie[1:]
	}
	return nil
}
