package domainstore

import (
	"time"

	"github.com/betagouv/zacharie-sub006/internal/model"
)

// FichePatch is an explicit partial update for a fiche. Nil fields are left
// untouched by the merge; form payloads are validated into a patch at the
// boundary instead of being merged ad hoc per call site.
type FichePatch struct {
	CurrentOwner *model.OwnerSlot
	NextOwner    *model.OwnerSlot
	PrevOwner    *model.OwnerSlot

	ExaminateurSignedAt *time.Time
	CollecteFinishedAt  *time.Time
	SVIAssignedAt       *time.Time
	SVIClosedAt         *time.Time
	ClosedAt            *time.Time

	DeletedAt *time.Time
}

// MergeFiche applies a patch to a copy of the fiche and returns it. Pure; the
// input fiche is not modified.
func MergeFiche(fiche model.Fiche, patch FichePatch) model.Fiche {
	if patch.CurrentOwner != nil {
		fiche.CurrentOwner = *patch.CurrentOwner
	}
	if patch.NextOwner != nil {
		fiche.NextOwner = *patch.NextOwner
	}
	if patch.PrevOwner != nil {
		fiche.PrevOwner = *patch.PrevOwner
	}
	if patch.ExaminateurSignedAt != nil {
		fiche.ExaminateurSignedAt = patch.ExaminateurSignedAt
	}
	if patch.CollecteFinishedAt != nil {
		fiche.CollecteFinishedAt = patch.CollecteFinishedAt
	}
	if patch.SVIAssignedAt != nil {
		fiche.SVIAssignedAt = patch.SVIAssignedAt
	}
	if patch.SVIClosedAt != nil {
		fiche.SVIClosedAt = patch.SVIClosedAt
	}
	if patch.ClosedAt != nil {
		fiche.ClosedAt = patch.ClosedAt
	}
	if patch.DeletedAt != nil {
		fiche.DeletedAt = patch.DeletedAt
	}
	return fiche
}

// CarcassePatch is an explicit partial update for a carcass
type CarcassePatch struct {
	OwnerOverride          *model.OwnerSlot
	ManquanteAt            *time.Time
	TraitementAssainissant *string
	Saisie                 []string
	ConsigneAt             *time.Time
	ConsigneLeveeAt        *time.Time
	SVIAssignedToFicheAt   *time.Time
}

// MergeCarcasse applies a patch to a copy of the carcass and returns it. Pure;
// the input carcass is not modified.
func MergeCarcasse(carcasse model.Carcasse, patch CarcassePatch) model.Carcasse {
	if patch.OwnerOverride != nil {
		override := *patch.OwnerOverride
		carcasse.OwnerOverride = &override
	}
	if patch.ManquanteAt != nil {
		carcasse.ManquanteAt = patch.ManquanteAt
	}
	if patch.TraitementAssainissant != nil {
		carcasse.TraitementAssainissant = *patch.TraitementAssainissant
	}
	if patch.Saisie != nil {
		carcasse.Saisie = append([]string(nil), patch.Saisie...)
	}
	if patch.ConsigneAt != nil {
		carcasse.ConsigneAt = patch.ConsigneAt
	}
	if patch.ConsigneLeveeAt != nil {
		carcasse.ConsigneLeveeAt = patch.ConsigneLeveeAt
	}
	if patch.SVIAssignedToFicheAt != nil {
		carcasse.SVIAssignedToFicheAt = patch.SVIAssignedToFicheAt
	}
	return carcasse
}
