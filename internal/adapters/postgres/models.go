package postgres

import (
	"time"

	"github.com/google/uuid"
)

type utilisateurModel struct {
	ID                  int64      `gorm:"column:id_utilisateur;primaryKey;autoIncrement"`
	Email               string     `gorm:"column:email"`
	PasswordHash        string     `gorm:"column:password_hash"`
	Nom                 string     `gorm:"column:nom"`
	Prenom              string     `gorm:"column:prenom"`
	Role                string     `gorm:"column:role"`
	TentativesConnexion int        `gorm:"column:tentatives_connexion"`
	EstBloque           bool       `gorm:"column:est_bloque"`
	DateBlocage         *time.Time `gorm:"column:date_blocage"`
	FirebaseUID         *string    `gorm:"column:firebase_uid"`
	DateCreation        time.Time  `gorm:"column:date_creation"`
	DateModification    time.Time  `gorm:"column:date_modification"`
}

func (utilisateurModel) TableName() string { return "utilisateur" }

type sessionModel struct {
	ID                   int64     `gorm:"column:id_session;primaryKey;autoIncrement"`
	UserID               int64     `gorm:"column:id_utilisateur"`
	Token                string    `gorm:"column:token"`
	IPAddress            *string   `gorm:"column:ip_address"`
	UserAgent            *string   `gorm:"column:user_agent"`
	DateCreation         time.Time `gorm:"column:date_creation"`
	DateExpiration       time.Time `gorm:"column:date_expiration"`
	DateDerniereActivite time.Time `gorm:"column:date_derniere_activite"`
	EstActive            bool      `gorm:"column:est_active"`
}

func (sessionModel) TableName() string { return "session" }

type parametreModel struct {
	Cle         string  `gorm:"column:cle;primaryKey"`
	Valeur      string  `gorm:"column:valeur"`
	Description *string `gorm:"column:description"`
}

func (parametreModel) TableName() string { return "parametre_systeme" }

type entrepriseModel struct {
	ID        int64   `gorm:"column:id_entreprise;primaryKey;autoIncrement"`
	Nom       string  `gorm:"column:nom"`
	Telephone *string `gorm:"column:telephone"`
	Email     *string `gorm:"column:email"`
	Adresse   *string `gorm:"column:adresse"`
}

func (entrepriseModel) TableName() string { return "entreprise" }

type signalementModel struct {
	ID               int64      `gorm:"column:id_signalement;primaryKey;autoIncrement"`
	UserID           *int64     `gorm:"column:id_utilisateur"`
	EntrepriseID     *int64     `gorm:"column:id_entreprise"`
	Latitude         float64    `gorm:"column:latitude"`
	Longitude        float64    `gorm:"column:longitude"`
	Adresse          *string    `gorm:"column:adresse"`
	Description      *string    `gorm:"column:description"`
	Statut           string     `gorm:"column:statut"`
	SurfaceM2        *float64   `gorm:"column:surface_m2"`
	Budget           *float64   `gorm:"column:budget"`
	DateSignalement  time.Time  `gorm:"column:date_signalement"`
	DateModification time.Time  `gorm:"column:date_modification"`
	DateDebutTravaux *time.Time `gorm:"column:date_debut_travaux"`
	DateFinTravaux   *time.Time `gorm:"column:date_fin_travaux"`
	FirebaseID       *string    `gorm:"column:firebase_id"`
}

func (signalementModel) TableName() string { return "signalement" }

// signalementDetailModel reads v_signalements_details: the report joined with its reporter and company.
type signalementDetailModel struct {
	signalementModel
	UtilisateurEmail    *string `gorm:"column:utilisateur_email"`
	UtilisateurNom      *string `gorm:"column:utilisateur_nom"`
	UtilisateurPrenom   *string `gorm:"column:utilisateur_prenom"`
	EntrepriseNom       *string `gorm:"column:entreprise_nom"`
	EntrepriseTelephone *string `gorm:"column:entreprise_telephone"`
}

func (signalementDetailModel) TableName() string { return "v_signalements_details" }

type statsModel struct {
	TotalSignalements int64   `gorm:"column:total_signalements"`
	NbNouveaux        int64   `gorm:"column:nb_nouveaux"`
	NbEnCours         int64   `gorm:"column:nb_en_cours"`
	NbTermines        int64   `gorm:"column:nb_termines"`
	SurfaceTotaleM2   float64 `gorm:"column:surface_totale_m2"`
	BudgetTotal       float64 `gorm:"column:budget_total"`
	AvancementPct     float64 `gorm:"column:avancement_pct"`
}

func (statsModel) TableName() string { return "v_stats_signalements" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "outbox" }
