package application

import (
	"time"

	"github.com/viralforge/roadworks/internal/domain"
)

type Config struct {
	RegisterRateLimitIPThreshold         int
	RegisterRateLimitIdentifierThreshold int
	RegisterRateLimitWindow              time.Duration
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Nom       string `json:"nom"`
	Prenom    string `json:"prenom"`
	Role      string `json:"role"`
	IPAddress string `json:"-"`
}

type AccountView struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	Nom              string    `json:"nom"`
	Prenom           string    `json:"prenom"`
	Role             string    `json:"role"`
	EstBloque        bool      `json:"estBloque"`
	DateCreation     time.Time `json:"dateCreation"`
	DateModification time.Time `json:"dateModification"`
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type UserSummary struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
	Role   string `json:"role"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresIn string      `json:"expiresIn"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserSummary `json:"user"`
}

type UpdateProfileRequest struct {
	Nom    *string `json:"nom"`
	Prenom *string `json:"prenom"`
	Email  *string `json:"email"`
}

type BlockedUser struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Nom         string     `json:"nom"`
	Prenom      string     `json:"prenom"`
	Role        string     `json:"role"`
	Tentatives  int        `json:"tentatives"`
	DateBlocage *time.Time `json:"dateBlocage"`
}

type AdminUser struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Nom          string    `json:"nom"`
	Prenom       string    `json:"prenom"`
	Role         string    `json:"role"`
	EstBloque    bool      `json:"estBloque"`
	Tentatives   int       `json:"tentatives"`
	DateCreation time.Time `json:"dateCreation"`
}

type ReporterView struct {
	Email  string `json:"email"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
}

type EntrepriseRefView struct {
	Nom       string `json:"nom"`
	Telephone string `json:"telephone"`
}

type SignalementView struct {
	ID               int64              `json:"id"`
	Latitude         float64            `json:"latitude"`
	Longitude        float64            `json:"longitude"`
	Adresse          string             `json:"adresse"`
	Description      string             `json:"description"`
	Statut           string             `json:"statut"`
	SurfaceM2        *float64           `json:"surfaceM2"`
	Budget           *float64           `json:"budget"`
	DateSignalement  time.Time          `json:"dateSignalement"`
	DateModification time.Time          `json:"dateModification"`
	DateDebutTravaux *time.Time         `json:"dateDebutTravaux,omitempty"`
	DateFinTravaux   *time.Time         `json:"dateFinTravaux,omitempty"`
	Utilisateur      *ReporterView      `json:"utilisateur"`
	Entreprise       *EntrepriseRefView `json:"entreprise"`
}

type ListSignalementsQuery struct {
	Statut string
	UserID int64
	Limit  int
	Offset int
}

type CreateSignalementRequest struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Adresse     string   `json:"adresse"`
	Description string   `json:"description"`
	SurfaceM2   *float64 `json:"surfaceM2"`
}

type UpdateSignalementRequest struct {
	Statut       *string  `json:"statut"`
	Budget       *float64 `json:"budget"`
	SurfaceM2    *float64 `json:"surfaceM2"`
	EntrepriseID *int64   `json:"entrepriseId"`
	Adresse      *string  `json:"adresse"`
	Description  *string  `json:"description"`
}

type StatsView struct {
	TotalSignalements int64   `json:"totalSignalements"`
	Nouveaux          int64   `json:"nouveaux"`
	EnCours           int64   `json:"enCours"`
	Termines          int64   `json:"termines"`
	SurfaceTotale     float64 `json:"surfaceTotale"`
	BudgetTotal       float64 `json:"budgetTotal"`
	Avancement        float64 `json:"avancement"`
	TotalUtilisateurs int64   `json:"totalUtilisateurs"`
}

type EntrepriseView struct {
	ID        int64  `json:"id"`
	Nom       string `json:"nom"`
	Telephone string `json:"telephone"`
	Email     string `json:"email"`
	Adresse   string `json:"adresse"`
}

type SyncStatus struct {
	Configured bool   `json:"configured"`
	Online     bool   `json:"online"`
	Message    string `json:"message"`
}

type SyncCount struct {
	SyncCount int `json:"syncCount"`
}

// StatsSync is the aggregate snapshot written to stats/global.
type StatsSync struct {
	TotalSignalements int64   `json:"total_signalements"`
	NbNouveaux        int64   `json:"nb_nouveaux"`
	NbEnCours         int64   `json:"nb_en_cours"`
	NbTermines        int64   `json:"nb_termines"`
	SurfaceTotaleM2   float64 `json:"surface_totale_m2"`
	BudgetTotal       float64 `json:"budget_total"`
	AvancementPct     float64 `json:"avancement_pct"`
	SyncedAt          string  `json:"synced_at"`
}

type SyncAllResult struct {
	Signalements SyncCount `json:"signalements"`
	Utilisateurs SyncCount `json:"utilisateurs"`
	Stats        StatsSync `json:"stats"`
	Timestamp    time.Time `json:"timestamp"`
}

func toAccountView(a domain.Account) AccountView {
	return AccountView{
		ID:               a.ID,
		Email:            a.Email,
		Nom:              a.Nom,
		Prenom:           a.Prenom,
		Role:             string(a.Role),
		EstBloque:        a.Locked,
		DateCreation:     a.CreatedAt,
		DateModification: a.UpdatedAt,
	}
}

func toUserSummary(a domain.Account) UserSummary {
	return UserSummary{
		ID:     a.ID,
		Email:  a.Email,
		Nom:    a.Nom,
		Prenom: a.Prenom,
		Role:   string(a.Role),
	}
}

func toSignalementView(item domain.Signalement) SignalementView {
	view := SignalementView{
		ID:               item.ID,
		Latitude:         item.Latitude,
		Longitude:        item.Longitude,
		Adresse:          item.Adresse,
		Description:      item.Description,
		Statut:           string(item.Statut),
		SurfaceM2:        item.SurfaceM2,
		Budget:           item.Budget,
		DateSignalement:  item.ReportedAt,
		DateModification: item.UpdatedAt,
		DateDebutTravaux: item.WorksStartedAt,
		DateFinTravaux:   item.WorksEndedAt,
	}
	if item.Reporter != nil {
		view.Utilisateur = &ReporterView{
			Email:  item.Reporter.Email,
			Nom:    item.Reporter.Nom,
			Prenom: item.Reporter.Prenom,
		}
	}
	if item.Entreprise != nil {
		view.Entreprise = &EntrepriseRefView{
			Nom:       item.Entreprise.Nom,
			Telephone: item.Entreprise.Telephone,
		}
	}
	return view
}
