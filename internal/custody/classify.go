package custody

import (
	"github.com/betagouv/zacharie-sub006/internal/model"
)

// Bucket defines the responsibility bucket of a fiche for a given actor
type Bucket string

const (
	// BucketUnderMyResponsibility represents a fiche the actor currently holds
	BucketUnderMyResponsibility Bucket = "under-my-responsibility"
	// BucketToTake represents a fiche handed to the actor and awaiting pickup
	BucketToTake Bucket = "to-take"
	// BucketOngoing represents a fiche the actor participated in earlier
	BucketOngoing Bucket = "ongoing"
	// BucketNone represents a fiche the actor has no stake in
	BucketNone Bucket = ""
)

// delegationRule declares that a member of an organization linked to the
// owning organization with the given tag may act on the owner's custody slot.
// This models contractual subcontracting between organizations.
type delegationRule struct {
	OwnerRole  model.Role
	LinkedRole model.Role
	Tag        model.RelationTag
}

// delegationTable is consulted uniformly by both the under-my-responsibility
// and to-take classifiers.
var delegationTable = []delegationRule{
	{OwnerRole: model.RoleETG, LinkedRole: model.RoleCollecteurPro, Tag: model.RelationCollecteurAssocie},
	{OwnerRole: model.RoleCollecteurPro, LinkedRole: model.RoleETG, Tag: model.RelationETGAssocie},
}

// SlotResolvesTo reports whether the ownership slot resolves to the acting
// user: directly, through one of the user's organizations, or through a
// delegation link declared in the delegation table.
func SlotResolvesTo(snap *Snapshot, slot model.OwnerSlot, user *model.User) bool {
	if user == nil || slot.IsEmpty() {
		return false
	}
	if slot.UserID != nil && *slot.UserID == user.UUID {
		return true
	}
	if slot.OrgID == nil {
		return false
	}
	if user.WorksFor(*slot.OrgID) {
		return true
	}
	owner := snap.Org(slot.OrgID)
	if owner == nil {
		return false
	}
	for _, rule := range delegationTable {
		if rule.OwnerRole != slot.Role {
			continue
		}
		for _, rel := range owner.Relations {
			if rel.Tag != rule.Tag {
				continue
			}
			linked := snap.Organizations[rel.RelatedOrgID]
			if linked == nil || linked.Role != rule.LinkedRole {
				continue
			}
			if user.WorksFor(linked.UUID) {
				return true
			}
		}
	}
	return false
}

// CarcasseOwner returns the ownership slot governing per-item actions on a
// carcass: the item's own override when present, otherwise the parent fiche's
// current owner. Split lots carry overrides when part of a fiche moves
// separately from the rest.
func CarcasseOwner(fiche *model.Fiche, carcasse *model.Carcasse) model.OwnerSlot {
	if carcasse != nil && carcasse.OwnerOverride != nil && !carcasse.OwnerOverride.IsEmpty() {
		return *carcasse.OwnerOverride
	}
	if fiche == nil {
		return model.OwnerSlot{}
	}
	return fiche.CurrentOwner
}

// CarcasseResolvesTo reports whether the acting user may perform per-item
// actions on the carcass. The effective owner resolves through the same
// membership and delegation rules as the fiche slots.
func CarcasseResolvesTo(snap *Snapshot, fiche *model.Fiche, carcasse *model.Carcasse, user *model.User) bool {
	return SlotResolvesTo(snap, CarcasseOwner(fiche, carcasse), user)
}

// IsParticipant reports whether the user was the initial examiner, the first
// holder, or any custody-hop actor on the fiche (by user id or organization
// membership).
func IsParticipant(snap *Snapshot, fiche *model.Fiche, user *model.User) bool {
	if user == nil {
		return false
	}
	if fiche.ExaminateurInitialID == user.UUID || fiche.PremierDetenteurID == user.UUID {
		return true
	}
	if fiche.PremierDetenteurOrgID != "" && user.WorksFor(fiche.PremierDetenteurOrgID) {
		return true
	}
	for _, hop := range snap.FicheIntermediaires(fiche) {
		if hop.UserID != nil && *hop.UserID == user.UUID {
			return true
		}
		if hop.OrgID != nil && user.WorksFor(*hop.OrgID) {
			return true
		}
	}
	return false
}

// Classification is the result of classifying one fiche for one actor. The
// responsibility bucket is exclusive; Ongoing is tracked independently so a
// historical participant keeps the fiche in their ongoing list.
type Classification struct {
	Responsibility Bucket
	Ongoing        bool
}

// ClassifyFiche classifies a fiche for the acting user. Buckets are evaluated
// in order, first match wins.
func ClassifyFiche(snap *Snapshot, fiche *model.Fiche, user *model.User) Classification {
	var c Classification
	if fiche == nil || fiche.IsDeleted() || fiche.IsTerminal() {
		return c
	}
	c.Ongoing = IsParticipant(snap, fiche, user)
	if fiche.NextOwner.IsEmpty() && SlotResolvesTo(snap, fiche.CurrentOwner, user) {
		c.Responsibility = BucketUnderMyResponsibility
		return c
	}
	if SlotResolvesTo(snap, fiche.NextOwner, user) {
		c.Responsibility = BucketToTake
		return c
	}
	return c
}

// FichesUnderMyResponsibility returns the fiches the actor currently holds
func FichesUnderMyResponsibility(snap *Snapshot, user *model.User) []*model.Fiche {
	return fichesInBucket(snap, user, BucketUnderMyResponsibility)
}

// FichesToTake returns the fiches awaiting pickup by the actor
func FichesToTake(snap *Snapshot, user *model.User) []*model.Fiche {
	return fichesInBucket(snap, user, BucketToTake)
}

// FichesOngoing returns the non-terminal fiches the actor participated in that
// fell outside the first two buckets
func FichesOngoing(snap *Snapshot, user *model.User) []*model.Fiche {
	var out []*model.Fiche
	for _, fiche := range snap.Fiches {
		c := ClassifyFiche(snap, fiche, user)
		if c.Ongoing && c.Responsibility == BucketNone {
			out = append(out, fiche)
		}
	}
	return out
}

func fichesInBucket(snap *Snapshot, user *model.User, bucket Bucket) []*model.Fiche {
	var out []*model.Fiche
	for _, fiche := range snap.Fiches {
		if ClassifyFiche(snap, fiche, user).Responsibility == bucket {
			out = append(out, fiche)
		}
	}
	return out
}

// PendingActionCount is the best-effort badge count: fiches the actor holds
// plus fiches waiting for them. Derived for passive display, never
// authoritative.
func PendingActionCount(snap *Snapshot, user *model.User) int {
	count := 0
	for _, fiche := range snap.Fiches {
		switch ClassifyFiche(snap, fiche, user).Responsibility {
		case BucketUnderMyResponsibility, BucketToTake:
			count++
		}
	}
	return count
}
