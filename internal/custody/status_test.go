package custody

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/betagouv/zacharie-sub006/internal/model"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestMissingDominatesEveryOtherSignal(t *testing.T) {
	now := time.Now()
	carcasse := &model.Carcasse{
		ManquanteAt:            timePtr(now),
		TraitementAssainissant: "congelation",
		Saisie:                 []string{"Saisie totale"},
		ConsigneAt:             timePtr(now),
	}
	require.Equal(t, model.StatusManquante, CarcasseStatusAt(carcasse, now))
}

func TestSanitizingTreatmentBeatsSeizure(t *testing.T) {
	now := time.Now()
	carcasse := &model.Carcasse{
		TraitementAssainissant: "congelation",
		Saisie:                 []string{model.SeizurePartial, "Foie"},
	}
	require.Equal(t, model.StatusTraitementAssainissant, CarcasseStatusAt(carcasse, now))
}

func TestSeizurePartialVersusTotal(t *testing.T) {
	now := time.Now()

	partial := &model.Carcasse{Saisie: []string{model.SeizurePartial, "Foie", "Coeur"}}
	require.Equal(t, model.StatusSaisiePartielle, CarcasseStatusAt(partial, now))
	require.Equal(t, []string{"Foie", "Coeur"}, SaisieParts(partial))

	total := &model.Carcasse{Saisie: []string{"Saisie totale"}}
	require.Equal(t, model.StatusSaisieTotale, CarcasseStatusAt(total, now))
	require.Nil(t, SaisieParts(total))

	// An empty leading element means no seizure was actually recorded
	blank := &model.Carcasse{Saisie: []string{""}}
	require.Equal(t, model.StatusSansDecision, CarcasseStatusAt(blank, now))
}

func TestConsignmentHeldAndLifted(t *testing.T) {
	now := time.Now()

	held := &model.Carcasse{ConsigneAt: timePtr(now.Add(-time.Hour))}
	require.Equal(t, model.StatusConsigne, CarcasseStatusAt(held, now))

	lifted := &model.Carcasse{
		ConsigneAt:      timePtr(now.Add(-2 * time.Hour)),
		ConsigneLeveeAt: timePtr(now.Add(-time.Hour)),
	}
	require.Equal(t, model.StatusLeveeDeConsigne, CarcasseStatusAt(lifted, now))
}

func TestAutoAcceptanceAfterInspectionDelay(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	clock := FixedClock(now)

	elevenDays := &model.Carcasse{
		SVIAssignedToFicheAt: timePtr(now.Add(-11 * 24 * time.Hour)),
	}
	require.Equal(t, model.StatusAccepte, CarcasseStatus(elevenDays, clock))

	nineDays := &model.Carcasse{
		SVIAssignedToFicheAt: timePtr(now.Add(-9 * 24 * time.Hour)),
	}
	require.Equal(t, model.StatusSansDecision, CarcasseStatus(nineDays, clock))

	// The threshold itself is strict: exactly ten days is still undecided
	exact := &model.Carcasse{
		SVIAssignedToFicheAt: timePtr(now.Add(-AutoAcceptAfter)),
	}
	require.Equal(t, model.StatusSansDecision, CarcasseStatus(exact, clock))
}

func TestNoSignalsMeansNoDecision(t *testing.T) {
	require.Equal(t, model.StatusSansDecision, CarcasseStatusAt(&model.Carcasse{}, time.Now()))
}

func TestStatusFromString(t *testing.T) {
	require.Equal(t, model.StatusManquante, model.StatusFromString("MANQUANTE"))
	require.Equal(t, model.StatusSaisiePartielle, model.StatusFromString("SAISIE_PARTIELLE"))

	// Unknown values degrade to the undecided status
	require.Equal(t, model.StatusSansDecision, model.StatusFromString("PERDUE"))
}
