package model

// SyncPayload is the data half of the authoritative store's envelope for the
// "everything relevant to me" read. The sync engine folds it back into the
// device projection after a replay pass.
type SyncPayload struct {
	User           *User           `json:"user"`
	Fiches         []Fiche         `json:"fiches"`
	Carcasses      []Carcasse      `json:"carcasses"`
	Intermediaires []Intermediaire `json:"intermediaires"`
	Users          []User          `json:"users"`
	Organizations  []Organization  `json:"organizations"`
}
