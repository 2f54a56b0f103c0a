package domain

import (
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusNew        Status = "NOUVEAU"
	StatusInProgress Status = "EN_COURS"
	StatusDone       Status = "TERMINE"
)

func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusNew:
		return StatusNew, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusDone:
		return StatusDone, nil
	default:
		return "", invalidInput("Statut invalide (NOUVEAU, EN_COURS ou TERMINE)")
	}
}

// Signalement is a citizen road-issue report with its joined reporter and company.
type Signalement struct {
	ID             int64
	Latitude       float64
	Longitude      float64
	Adresse        string
	Description    string
	Statut         Status
	SurfaceM2      *float64
	Budget         *float64
	UserID         *int64
	EntrepriseID   *int64
	ReportedAt     time.Time
	UpdatedAt      time.Time
	WorksStartedAt *time.Time
	WorksEndedAt   *time.Time
	FirebaseID     *string
	Reporter       *Reporter
	Entreprise     *EntrepriseRef
}

type Reporter struct {
	Email  string
	Nom    string
	Prenom string
}

type EntrepriseRef struct {
	Nom       string
	Telephone string
}

type Entreprise struct {
	ID        int64
	Nom       string
	Telephone string
	Email     string
	Adresse   string
}

// SignalementFilter narrows report listings. Zero values disable a filter.
type SignalementFilter struct {
	Statut Status
	UserID int64
	Limit  int
	Offset int
}

// SignalementCreate is a new report as submitted by a citizen.
type SignalementCreate struct {
	Latitude    float64
	Longitude   float64
	Adresse     string
	Description string
	SurfaceM2   *float64
	UserID      *int64
}

// SignalementUpdate carries the optional fields a manager may change.
type SignalementUpdate struct {
	Statut       *Status
	Budget       *float64
	SurfaceM2    *float64
	EntrepriseID *int64
	Adresse      *string
	Description  *string
}

func (u SignalementUpdate) Empty() bool {
	return u.Statut == nil && u.Budget == nil && u.SurfaceM2 == nil &&
		u.EntrepriseID == nil && u.Adresse == nil && u.Description == nil
}

// Stats aggregates v_stats_signalements.
type Stats struct {
	Total        int64
	New          int64
	InProgress   int64
	Done         int64
	SurfaceTotal float64
	BudgetTotal  float64
	ProgressPct  float64
}

// Mirror entity prefixes for fallback document keys.
const (
	MirrorEntitySignalement = "signalement"
	MirrorEntityUser        = "user"
)

// MirrorKey returns the recorded external key when present, else "<entity>_<id>".
func MirrorKey(entity string, id int64, external *string) string {
	if external != nil && strings.TrimSpace(*external) != "" {
		return *external
	}
	return entity + "_" + strconv.FormatInt(id, 10)
}
