package model

import (
	"time"
)

// Base model fields shared by all models
type Base struct {
	UUID      string    `json:"uuid" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role identifies the capability an actor holds in the custody chain
type Role string

const (
	// RoleExaminateurInitial represents the initial examiner of a fiche
	RoleExaminateurInitial Role = "EXAMINATEUR_INITIAL"
	// RolePremierDetenteur represents the first holder of the carcasses
	RolePremierDetenteur Role = "PREMIER_DETENTEUR"
	// RoleCollecteurPro represents a professional collector/transporter
	RoleCollecteurPro Role = "COLLECTEUR_PRO"
	// RoleETG represents a game treatment establishment
	RoleETG Role = "ETG"
	// RoleSVI represents the veterinary inspection service
	RoleSVI Role = "SVI"
)

// IsOrgRole reports whether the role belongs to an organization rather than a user
func (r Role) IsOrgRole() bool {
	switch r {
	case RoleCollecteurPro, RoleETG, RoleSVI:
		return true
	default:
		return false
	}
}

// User represents an acting person in the custody chain
type User struct {
	Base
	Email    string   `json:"email" gorm:"uniqueIndex"`
	Roles    []Role   `json:"roles" gorm:"serializer:json"`
	OrgIDs   []string `json:"org_ids" gorm:"serializer:json"`
	IsSynced bool     `json:"is_synced" gorm:"-"`
}

// HasRole reports whether the user holds the given role
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WorksFor reports whether the user belongs to the given organization
func (u *User) WorksFor(orgID string) bool {
	for _, id := range u.OrgIDs {
		if id == orgID {
			return true
		}
	}
	return false
}

// RelationTag identifies the kind of link between two organizations
type RelationTag string

const (
	// RelationCollecteurAssocie links a treatment establishment to its contracted collector
	RelationCollecteurAssocie RelationTag = "COLLECTEUR_ASSOCIE"
	// RelationETGAssocie links a collector to its contracted treatment establishment
	RelationETGAssocie RelationTag = "ETG_ASSOCIE"
)

// OrganizationRelation represents a contractual link letting one organization's
// members act on behalf of another's custody slot
type OrganizationRelation struct {
	RelatedOrgID string      `json:"related_org_id"`
	Tag          RelationTag `json:"tag"`
}

// Organization represents an acting entity (collector, treatment establishment, inspection service)
type Organization struct {
	Base
	Name      string                 `json:"name"`
	Role      Role                   `json:"role"`
	Relations []OrganizationRelation `json:"relations" gorm:"serializer:json"`
	IsSynced  bool                   `json:"is_synced" gorm:"-"`
}

// RelatedTo returns the relation to the given organization, if any
func (o *Organization) RelatedTo(orgID string) *OrganizationRelation {
	for i := range o.Relations {
		if o.Relations[i].RelatedOrgID == orgID {
			return &o.Relations[i]
		}
	}
	return nil
}

// OwnerSlot is one of the three ownership pointers on a fiche. At most one of
// UserID/OrgID is authoritative at a time; the cached display names may both be
// set. Role matches the type of whichever reference is set.
type OwnerSlot struct {
	UserID     *string `json:"user_id"`
	UserCached string  `json:"user_cached"`
	OrgID      *string `json:"org_id"`
	OrgCached  string  `json:"org_cached"`
	Role       Role    `json:"role"`
}

// IsEmpty reports whether the slot has no authoritative reference
func (s OwnerSlot) IsEmpty() bool {
	return s.UserID == nil && s.OrgID == nil
}

// Fiche represents one examination record moving through the custody chain
type Fiche struct {
	Base
	DeletedAt *time.Time `json:"deleted_at" gorm:"index"`

	CurrentOwner OwnerSlot `json:"current_owner" gorm:"embedded;embeddedPrefix:current_owner_"`
	NextOwner    OwnerSlot `json:"next_owner" gorm:"embedded;embeddedPrefix:next_owner_"`
	PrevOwner    OwnerSlot `json:"prev_owner" gorm:"embedded;embeddedPrefix:prev_owner_"`

	// Stage completion timestamps
	ExaminateurSignedAt *time.Time `json:"examinateur_signed_at"`
	CollecteFinishedAt  *time.Time `json:"collecte_finished_at"`
	SVIAssignedAt       *time.Time `json:"svi_assigned_at"`
	SVIClosedAt         *time.Time `json:"svi_closed_at"`
	ClosedAt            *time.Time `json:"closed_at"`

	ExaminateurInitialID  string `json:"examinateur_initial_id"`
	PremierDetenteurID    string `json:"premier_detenteur_id"`
	PremierDetenteurOrgID string `json:"premier_detenteur_org_id"`

	Carcasses      []Carcasse      `json:"carcasses" gorm:"foreignKey:FicheID"`
	Intermediaires []Intermediaire `json:"intermediaires" gorm:"foreignKey:FicheID"`

	IsSynced bool `json:"is_synced" gorm:"-"`
}

// IsTerminal reports whether the fiche has left the custody chain
func (f *Fiche) IsTerminal() bool {
	return f.SVIClosedAt != nil || f.ClosedAt != nil
}

// IsDeleted reports whether the fiche is soft-deleted
func (f *Fiche) IsDeleted() bool {
	return f.DeletedAt != nil
}

// Handoff rewrites the ownership chain for a stage transition:
// prev := current, current := next, next := target.
func (f *Fiche) Handoff(target OwnerSlot) {
	f.PrevOwner = f.CurrentOwner
	f.CurrentOwner = f.NextOwner
	f.NextOwner = target
}

// SeizurePartial is the literal first element of the seizure array marking a
// partial seizure; the remaining elements list the seized body parts.
const SeizurePartial = "Saisie partielle"

// Carcasse represents one unit (single animal or lot) within a fiche
type Carcasse struct {
	Base
	FicheID string `json:"fiche_id" gorm:"column:fiche_id;type:uuid;index"`
	Fiche   *Fiche `json:"-" gorm:"foreignKey:FicheID"`

	NumeroBracelet string `json:"numero_bracelet"`
	Espece         string `json:"espece"`

	// Per-item ownership override; takes precedence over the parent fiche's
	// slots for per-item actions when present.
	OwnerOverride *OwnerSlot `json:"owner_override,omitempty" gorm:"embedded;embeddedPrefix:override_"`

	ManquanteAt            *time.Time `json:"manquante_at"`
	TraitementAssainissant string     `json:"traitement_assainissant"`
	Saisie                 []string   `json:"saisie" gorm:"serializer:json"`
	ConsigneAt             *time.Time `json:"consigne_at"`
	ConsigneLeveeAt        *time.Time `json:"consigne_levee_at"`
	SVIAssignedToFicheAt   *time.Time `json:"svi_assigned_to_fei_at"`

	// CachedStatus is a display cache only; the authoritative status is always
	// recomputed from the fields above.
	CachedStatus string `json:"cached_status"`

	IsSynced bool `json:"is_synced" gorm:"-"`
}

// Intermediaire represents one recorded handoff to a collection, transport or
// treatment actor. Hops are append-only; completion is marked by
// CheckFinishedAt, never by removal.
type Intermediaire struct {
	Base
	FicheID string `json:"fiche_id" gorm:"column:fiche_id;type:uuid;index"`
	Fiche   *Fiche `json:"-" gorm:"foreignKey:FicheID"`

	UserID   *string `json:"user_id" gorm:"column:user_id;type:uuid"`
	OrgID    *string `json:"org_id" gorm:"column:org_id;type:uuid"`
	Role     Role    `json:"role"`
	Sequence int     `json:"sequence"`

	CheckFinishedAt *time.Time `json:"check_finished_at"`
}

// NotificationChannel identifies an outbound delivery channel
type NotificationChannel string

const (
	// ChannelPush represents the push-delivery transport
	ChannelPush NotificationChannel = "push"
	// ChannelEmail represents the email-delivery transport
	ChannelEmail NotificationChannel = "email"
)

// NotificationLog records one scheduled delivery per (subject, kind, channel).
// Its existence is the idempotency guard: it is written after a delivery
// attempt has been made, whether or not delivery was confirmed.
type NotificationLog struct {
	Base
	SubjectID string              `json:"subject_id" gorm:"uniqueIndex:idx_notification_guard"`
	Kind      string              `json:"kind" gorm:"uniqueIndex:idx_notification_guard"`
	Channel   NotificationChannel `json:"channel" gorm:"uniqueIndex:idx_notification_guard"`
	Recipient string              `json:"recipient"`
	Delivered bool                `json:"delivered"`
	// Receipt is the transport-specific receipt, stored verbatim for audit
	Receipt     []byte     `json:"receipt" gorm:"type:jsonb"`
	AttemptedAt *time.Time `json:"attempted_at"`
}
